package qos

import (
	log "github.com/sirupsen/logrus"
)

// Usage is a QoS's live accounting state: group totals shared across
// every association charging against this QoS, plus a per-user
// breakdown for the max_*_pu limits (spec.md section 3, "Per-user
// usage").
type Usage struct {
	GrpUsedJobs       uint64
	GrpUsedSubmitJobs uint64
	GrpUsedCPUs       uint64
	GrpUsedMem        uint64
	GrpUsedNodes      uint64
	GrpUsedWallSecs   uint64
	GrpUsedCPURunSecs uint64

	// UsageRaw is the historical cpu-seconds consumed by finished jobs
	// (cpus * wall seconds, accrued by Fini, with no decay applied).
	// Safe-limits post-select and JobTimeOut read it as usage_mins.
	UsageRaw float64

	byUser map[uint32]*UserUsage
}

// UserUsage is one user's slice of a QoS's group usage, tracked
// separately from the association tree so the same user submitting
// under different accounts still shares one max_*_pu ceiling within a
// QoS.
type UserUsage struct {
	Jobs       uint64
	SubmitJobs uint64
	CPUs       uint64
	Nodes      uint64
}

// NewUsage returns a zero-valued Usage with its per-user map ready.
func NewUsage() Usage {
	return Usage{byUser: make(map[uint32]*UserUsage)}
}

// ForUser returns the UserUsage record for uid, creating it on first
// reference (spec.md design note: "replace the per-user usage list
// with a hash map keyed by user id").
func (u *Usage) ForUser(uid uint32) *UserUsage {
	if u.byUser == nil {
		u.byUser = make(map[uint32]*UserUsage)
	}
	uu, ok := u.byUser[uid]
	if !ok {
		uu = &UserUsage{}
		u.byUser[uid] = uu
	}
	return uu
}

// clampSub subtracts delta from *field, clamping to zero and logging a
// diagnostic on underflow rather than returning an error, matching the
// original's _qos_adjust_limit_usage underflow handling.
func clampSub(field *uint64, delta uint64, qosName, counter string) {
	if delta > *field {
		log.WithFields(log.Fields{
			"qos":     qosName,
			"counter": counter,
			"have":    *field,
			"remove":  delta,
		}).Warn("qos usage underflow, clamping to zero")
		*field = 0
		return
	}
	*field -= delta
}

// AddSubmit records a newly submitted (pending) job against the QoS
// and against uid's per-user bucket.
func (q *QoS) AddSubmit(uid uint32, cpus uint64) {
	q.Usage.GrpUsedSubmitJobs++
	uu := q.Usage.ForUser(uid)
	uu.SubmitJobs++
	_ = cpus // submit-time accounting tracks job/submit counts only
}

// RemoveSubmit reverses AddSubmit, e.g. on job rejection or withdrawal.
func (q *QoS) RemoveSubmit(uid uint32) {
	clampSub(&q.Usage.GrpUsedSubmitJobs, 1, q.Name, "grp_used_submit_jobs")
	uu := q.Usage.ForUser(uid)
	clampSub(&uu.SubmitJobs, 1, q.Name, "user_submit_jobs")
}

// Begin records a job transitioning into the running state, charging
// its running-resource counters plus its cpu-run-seconds reservation
// (total_cpus * time_limit * 60, spec.md section 4.6). It mirrors the
// original's JOB_BEGIN case: submit counters stay charged (a running
// job is still counted as submitted) and running counters are added
// on top.
func (q *QoS) Begin(uid uint32, cpus, mem, nodes, cpuRunSecs uint64) {
	q.Usage.GrpUsedJobs++
	q.Usage.GrpUsedCPUs += cpus
	q.Usage.GrpUsedMem += mem
	q.Usage.GrpUsedNodes += nodes
	q.Usage.GrpUsedCPURunSecs += cpuRunSecs

	uu := q.Usage.ForUser(uid)
	uu.Jobs++
	uu.CPUs += cpus
	uu.Nodes += nodes
}

// Fini reverses exactly what Begin added for this job, using the
// job's own recorded snapshot rather than current limits — including
// the cpu-run-seconds reservation, reversed at its charged value, not
// recomputed from current time-limit configuration (spec.md invariant
// 6) — plus the wall-clock and historical cpu-usage totals accrued
// while it ran.
func (q *QoS) Fini(uid uint32, cpus, mem, nodes, chargedCPURunSecs, wallSecs uint64) {
	clampSub(&q.Usage.GrpUsedJobs, 1, q.Name, "grp_used_jobs")
	clampSub(&q.Usage.GrpUsedCPUs, cpus, q.Name, "grp_used_cpus")
	clampSub(&q.Usage.GrpUsedMem, mem, q.Name, "grp_used_mem")
	clampSub(&q.Usage.GrpUsedNodes, nodes, q.Name, "grp_used_nodes")
	clampSub(&q.Usage.GrpUsedCPURunSecs, chargedCPURunSecs, q.Name, "grp_used_cpu_run_secs")
	q.Usage.GrpUsedWallSecs += wallSecs
	q.Usage.UsageRaw += float64(cpus) * float64(wallSecs)

	uu := q.Usage.ForUser(uid)
	clampSub(&uu.Jobs, 1, q.Name, "user_jobs")
	clampSub(&uu.CPUs, cpus, q.Name, "user_cpus")
	clampSub(&uu.Nodes, nodes, q.Name, "user_nodes")
}

// AdjustCPURunSecs applies a signed delta to the cpu-run-seconds
// reservation, used by AlterJob when a running job's time limit
// changes (spec.md section 4.7). A negative delta clamps at zero
// exactly like clampSub.
func (q *QoS) AdjustCPURunSecs(delta int64) {
	if delta >= 0 {
		q.Usage.GrpUsedCPURunSecs += uint64(delta)
		return
	}
	clampSub(&q.Usage.GrpUsedCPURunSecs, uint64(-delta), q.Name, "grp_used_cpu_run_secs")
}

