package engine

import (
	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/config"
	"github.com/opentorque/acctpolicy/internal/job"
	"github.com/opentorque/acctpolicy/internal/limitset"
	"github.com/opentorque/acctpolicy/internal/qos"
	"github.com/opentorque/acctpolicy/internal/reason"
	"github.com/opentorque/acctpolicy/internal/tres"
)

// JobRunnableState reports whether a job carries a terminal reason
// code (FAIL_TIMEOUT/FAIL_ACCOUNT) that makes it permanently
// unrunnable regardless of current usage (spec.md section 4.3,
// supplemented from `acct_policy_job_runnable_state`).
func (e *Engine) JobRunnableState(j *job.Job) Decision {
	switch j.StateReason {
	case reason.FailTimeout:
		return reject(reason.FailTimeout, j.StateDesc)
	case reason.FailAccount:
		return reject(reason.FailAccount, j.StateDesc)
	default:
		return allow()
	}
}

func denyLimitAny(chain []*qos.QoS) bool {
	for _, q := range chain {
		if q != nil && q.Flags.DenyLimit {
			return true
		}
	}
	return false
}

// JobRunnablePreSelect checks only the limits that do not depend on
// the scheduler's chosen node/cpu count: grp_jobs, grp_wall,
// max_jobs_pu, and max_wall_pj (the last to catch a cap lowered since
// admission). It never mutates usage. Any stale limit-wait reason is
// cleared before checking, so a fresh pass never carries forward a
// hold from before a configuration change (spec.md section 4.3).
func (e *Engine) JobRunnablePreSelect(j *job.Job) Decision {
	unlock := e.locks.acquire(LockBundle{Assoc: LockRead, QOS: LockRead, User: LockRead})
	defer unlock()

	if reason.IsLimitWait(j.StateReason) {
		j.SetHold(reason.NoReason, "")
	}

	if !e.cfg.Enforce(config.EnforceLimits) {
		return allow()
	}

	chain := resolveQOSChain(j)
	deny := denyLimitAny(chain)

	for _, q := range chain {
		q.RLock()
		d := checkQOSPreSelect(q, j, deny)
		q.RUnlock()
		if !d.Allow {
			j.SetHold(d.Reason, d.Desc)
			return d
		}
	}

	for i, a := range j.Assoc.Chain() {
		a.RLock()
		d := checkAssocPreSelect(a, j, i == 0, deny)
		a.RUnlock()
		if !d.Allow {
			j.SetHold(d.Reason, d.Desc)
			return d
		}
	}

	return allow()
}

func checkQOSPreSelect(q *qos.QoS, j *job.Job, deny bool) Decision {
	if q.Limits.GrpJobs != qos.Infinite && q.Usage.GrpUsedJobs >= q.Limits.GrpJobs {
		return hold(reason.WaitQOSGrpJob, "qos group job count limit reached", deny)
	}
	if q.Limits.GrpWallMins != qos.Infinite && q.Usage.GrpUsedWallSecs/60 >= q.Limits.GrpWallMins {
		return hold(reason.WaitQOSGrpWall, "qos group wall-time budget exhausted", deny)
	}
	uu := q.Usage.ForUser(j.UserID)
	if q.Limits.MaxJobsPerUser != qos.Infinite && uu.Jobs >= q.Limits.MaxJobsPerUser {
		return hold(reason.WaitQOSMaxJobPerUser, "qos per-user job count limit reached", deny)
	}
	if q.Limits.MaxWallPerJob != qos.Infinite && j.TimeLimitMinutes > q.Limits.MaxWallPerJob {
		return hold(reason.WaitQOSMaxWallPerJob, "qos max_wall_per_job lowered below job's installed time limit", deny)
	}
	return allow()
}

func checkAssocPreSelect(a *assoc.Association, j *job.Job, isLeaf, deny bool) Decision {
	if a.Limits.GrpJobs != assoc.Infinite && a.Usage.GrpUsedJobs >= a.Limits.GrpJobs {
		return hold(reason.WaitAssocGrpJob, "association group job count limit reached", deny)
	}
	if a.Limits.GrpWallMins != assoc.Infinite && a.Usage.GrpUsedWallSecs/60 >= a.Limits.GrpWallMins {
		return hold(reason.WaitAssocGrpWall, "association group wall-time budget exhausted", deny)
	}
	if isLeaf && a.Limits.MaxWallPerJob != assoc.Infinite && j.TimeLimitMinutes > a.Limits.MaxWallPerJob {
		return hold(reason.WaitAssocMaxWallPerJob, "association max_wall_per_job lowered below job's installed time limit", deny)
	}
	return allow()
}

// JobRunnablePostSelect re-runs JobRunnablePreSelect's configuration
// checks, then evaluates every group, per-job, and per-user ceiling
// against the scheduler's chosen node_cnt/cpu_cnt/pn_min_mem,
// including the safe-limits finishability guarantee on grp_cpu_mins
// (spec.md section 4.4).
func (e *Engine) JobRunnablePostSelect(j *job.Job, nodeCnt, cpuCnt, pnMinMem uint64) Decision {
	if d := e.JobRunnablePreSelect(j); !d.Allow {
		return d
	}

	unlock := e.locks.acquire(LockBundle{Assoc: LockRead, QOS: LockRead, User: LockRead})
	defer unlock()

	if !e.cfg.Enforce(config.EnforceLimits) {
		return allow()
	}

	jobMemory := job.NormalizedMemory(pnMinMem, cpuCnt, nodeCnt)
	memExempt := limitset.IsAdminSet(j.Limits.MaxTRES[tres.Mem]) || limitset.IsAdminSet(j.Limits.MinTRES[tres.CPU])
	jobCPUMins := cpuCnt * j.TimeLimitMinutes
	safe := e.cfg.Enforce(config.EnforceSafe)

	chain := resolveQOSChain(j)
	deny := denyLimitAny(chain)

	for _, q := range chain {
		q.RLock()
		d := checkQOSPostSelect(q, j, nodeCnt, cpuCnt, jobMemory, jobCPUMins, memExempt, safe, deny)
		q.RUnlock()
		if !d.Allow {
			j.SetHold(d.Reason, d.Desc)
			return d
		}
	}

	for i, a := range j.Assoc.Chain() {
		a.RLock()
		d := checkAssocPostSelect(a, nodeCnt, cpuCnt, jobMemory, jobCPUMins, memExempt, safe, i == 0, deny)
		a.RUnlock()
		if !d.Allow {
			j.SetHold(d.Reason, d.Desc)
			return d
		}
	}

	return allow()
}

// checkQOSPostSelect mirrors `_qos_job_runnable_post_select`'s
// per-QoS checks in order: historical cpu-minute finishability (safe
// mode only), group cpu/mem/cpu-run-min/node ceilings (each in "dual
// form": a request that alone exceeds the cap, or one that pushes
// usage over it, are both caught by comparing against the remaining
// budget), per-job ceilings, then per-user ceilings.
func checkQOSPostSelect(q *qos.QoS, j *job.Job, nodeCnt, cpuCnt, jobMemory, jobCPUMins uint64, memExempt, safe, deny bool) Decision {
	if safe && q.Limits.GrpCPUMins != qos.Infinite {
		usageMins := uint64(q.Usage.UsageRaw / 60)
		reservedMins := q.Usage.GrpUsedCPURunSecs / 60
		if jobCPUMins+reservedMins+usageMins > q.Limits.GrpCPUMins {
			return hold(reason.WaitQOSGrpCPUMin, "insufficient qos cpu-minute budget to finish within time limit", deny)
		}
	}
	if q.Limits.GrpCPUs != qos.Infinite && cpuCnt > remaining(q.Limits.GrpCPUs, q.Usage.GrpUsedCPUs) {
		return hold(reason.WaitQOSGrpCPU, "qos group cpu limit reached", deny)
	}
	if !memExempt && q.Limits.GrpMem != qos.Infinite && jobMemory > remaining(q.Limits.GrpMem, q.Usage.GrpUsedMem) {
		return hold(reason.WaitQOSGrpMemory, "qos group memory limit reached", deny)
	}
	if q.Limits.GrpCPURunMins != qos.Infinite {
		reservedMins := q.Usage.GrpUsedCPURunSecs / 60
		if jobCPUMins > remaining(q.Limits.GrpCPURunMins, reservedMins) {
			return hold(reason.WaitQOSGrpCPURunMin, "qos group cpu-run-minute limit reached", deny)
		}
	}
	if q.Limits.GrpNodes != qos.Infinite && nodeCnt > remaining(q.Limits.GrpNodes, q.Usage.GrpUsedNodes) {
		return hold(reason.WaitQOSGrpNodes, "qos group node limit reached", deny)
	}

	if q.Limits.MaxCPUMinsPerJob != qos.Infinite && jobCPUMins > q.Limits.MaxCPUMinsPerJob {
		return hold(reason.WaitQOSMaxCPUMinsPerJob, "qos max_cpu_mins_per_job exceeded", deny)
	}
	if !limitset.IsAdminSet(j.Limits.MaxTRES[tres.CPU]) && q.Limits.MaxCPUsPerJob != qos.Infinite && cpuCnt > q.Limits.MaxCPUsPerJob {
		return hold(reason.WaitQOSMaxCPUPerJob, "qos max_cpus_per_job exceeded", deny)
	}
	if !limitset.IsAdminSet(j.Limits.MinTRES[tres.CPU]) && q.Limits.MinCPUsPerJob != qos.Infinite && cpuCnt < q.Limits.MinCPUsPerJob {
		return hold(reason.WaitQOSMinCPUs, "qos min_cpus_per_job violated", deny)
	}
	if !limitset.IsAdminSet(j.Limits.MaxNodes) && q.Limits.MaxNodesPerJob != qos.Infinite && nodeCnt > q.Limits.MaxNodesPerJob {
		return hold(reason.WaitQOSMaxNodePerJob, "qos max_nodes_per_job exceeded", deny)
	}

	uu := q.Usage.ForUser(j.UserID)
	if q.Limits.MaxCPUsPerUser != qos.Infinite && cpuCnt > remaining(q.Limits.MaxCPUsPerUser, uu.CPUs) {
		return hold(reason.WaitQOSMaxCPUPerUser, "qos per-user cpu limit reached", deny)
	}
	if q.Limits.MaxNodesPerUser != qos.Infinite && nodeCnt > remaining(q.Limits.MaxNodesPerUser, uu.Nodes) {
		return hold(reason.WaitQOSMaxNodePerUser, "qos per-user node limit reached", deny)
	}
	return allow()
}

// checkAssocPostSelect mirrors the association side of the same walk.
// Per-job ceilings (max_tres_pj-derived cpu/node caps, max_cpu_mins_pj)
// are only enforced at the leaf; group ceilings apply at every level
// (spec.md section 4.4, "For associations, per-job caps are enforced
// only at the leaf").
func checkAssocPostSelect(a *assoc.Association, nodeCnt, cpuCnt, jobMemory, jobCPUMins uint64, memExempt, safe, isLeaf, deny bool) Decision {
	grpCPUMins := a.Limits.GrpTRESMins.Find(tres.CPU)
	if safe && grpCPUMins != tres.Infinite {
		usageMins := uint64(a.Usage.UsageRawSecs / 60)
		reservedMins := a.Usage.GrpUsedTRESRunMins.Find(tres.CPU) / 60
		if jobCPUMins+reservedMins+usageMins > grpCPUMins {
			return hold(reason.WaitAssocGrpCPUMin, "insufficient association cpu-minute budget to finish within time limit", deny)
		}
	}

	grpCPU := a.Limits.GrpTRES.Find(tres.CPU)
	if grpCPU != tres.Infinite && cpuCnt > remaining(grpCPU, a.Usage.GrpUsedTRES.Find(tres.CPU)) {
		return hold(reason.WaitAssocGrpCPU, "association group cpu limit reached", deny)
	}
	grpMem := a.Limits.GrpTRES.Find(tres.Mem)
	if !memExempt && grpMem != tres.Infinite && jobMemory > remaining(grpMem, a.Usage.GrpUsedTRES.Find(tres.Mem)) {
		return hold(reason.WaitAssocGrpMemory, "association group memory limit reached", deny)
	}
	grpCPURunMins := a.Limits.GrpTRESRunMins.Find(tres.CPU)
	if grpCPURunMins != tres.Infinite {
		reservedMins := a.Usage.GrpUsedTRESRunMins.Find(tres.CPU) / 60
		if jobCPUMins > remaining(grpCPURunMins, reservedMins) {
			return hold(reason.WaitAssocGrpCPURunMin, "association group cpu-run-minute limit reached", deny)
		}
	}
	grpNodes := a.Limits.GrpTRES.Find(tres.Node)
	if grpNodes != tres.Infinite && nodeCnt > remaining(grpNodes, a.Usage.GrpUsedTRES.Find(tres.Node)) {
		return hold(reason.WaitAssocGrpNodes, "association group node limit reached", deny)
	}

	if !isLeaf {
		return allow()
	}

	maxCPUMinsPerJob := a.Limits.MaxTRESMinsPerJob.Find(tres.CPU)
	if maxCPUMinsPerJob != tres.Infinite && jobCPUMins > maxCPUMinsPerJob {
		return hold(reason.WaitAssocMaxCPUMinsPerJob, "association max_cpu_mins_per_job exceeded", deny)
	}
	maxCPUPerJob := a.Limits.MaxTRESPerJob.Find(tres.CPU)
	if maxCPUPerJob != tres.Infinite && cpuCnt > maxCPUPerJob {
		return hold(reason.WaitAssocMaxCPUsPerJob, "association max_tres_per_job cpu cap exceeded", deny)
	}
	if a.Limits.MaxNodesPerJob != assoc.Infinite && nodeCnt > a.Limits.MaxNodesPerJob {
		return hold(reason.WaitAssocMaxNodePerJob, "association max_nodes_per_job exceeded", deny)
	}
	return allow()
}
