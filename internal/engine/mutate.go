package engine

import (
	"time"

	"github.com/opentorque/acctpolicy/internal/job"
)

// AddJobSubmit charges a newly submitted job's pending counters into
// its QoS pair and association chain (spec.md section 4.7,
// ADD_SUBMIT).
func (e *Engine) AddJobSubmit(j *job.Job) {
	unlock := e.locks.acquire(LockBundle{Assoc: LockWrite, QOS: LockWrite})
	defer unlock()

	j.Assoc.AddSubmit()
	for _, q := range resolveQOSChain(j) {
		q.Lock()
		q.AddSubmit(j.UserID, j.ReqCPUs)
		q.Unlock()
	}
}

// RemoveJobSubmit reverses AddJobSubmit, e.g. when a job is rejected
// or withdrawn before running (REM_SUBMIT).
func (e *Engine) RemoveJobSubmit(j *job.Job) {
	unlock := e.locks.acquire(LockBundle{Assoc: LockWrite, QOS: LockWrite})
	defer unlock()

	j.Assoc.RemoveSubmit()
	for _, q := range resolveQOSChain(j) {
		q.Lock()
		q.RemoveSubmit(j.UserID)
		q.Unlock()
	}
}

// JobBegin transitions a job into the running state, charging its
// running-resource footprint into its QoS pair and association chain,
// and notifies the accounting-storage collaborator.
func (e *Engine) JobBegin(j *job.Job, startedAt time.Time) {
	unlock := e.locks.acquire(LockBundle{Assoc: LockWrite, QOS: LockWrite})

	usage := j.RunningUsage()
	cpuRunSecs := j.CPURunSecsReservation()
	j.Assoc.Begin(usage, cpuRunSecs)
	for _, q := range resolveQOSChain(j) {
		q.Lock()
		q.Begin(j.UserID, usage[0], usage[1], usage[2], cpuRunSecs)
		q.Unlock()
	}
	j.SetChargedCPURunSecs(cpuRunSecs)
	j.StartTime = startedAt
	j.State = job.StateRunning
	unlock()

	if j.Assoc != nil {
		_ = e.storage.JobStartDirect(j.ID, j.Assoc.ID, startedAt)
	}
}

// JobFini transitions a running job to finished, reversing exactly
// the running-resource footprint JobBegin charged (from the job's own
// snapshot, not current limits) and crediting elapsed wall time and
// historical cpu-seconds, then notifies the priority-subsystem collaborator (spec.md
// invariant: begin/finish symmetry).
func (e *Engine) JobFini(j *job.Job, finishedAt time.Time) {
	unlock := e.locks.acquire(LockBundle{Assoc: LockWrite, QOS: LockWrite})

	j.EndTime = finishedAt
	wall := j.WallSeconds(finishedAt)
	usage := j.RunningUsage()
	chargedCPURunSecs := j.ChargedCPURunSecs()

	j.Assoc.Fini(usage, chargedCPURunSecs, wall)
	for _, q := range resolveQOSChain(j) {
		q.Lock()
		q.Fini(j.UserID, usage[0], usage[1], usage[2], chargedCPURunSecs, wall)
		q.Unlock()
	}
	j.State = job.StateFinished
	unlock()

	if j.Assoc != nil {
		e.priority.JobEnd(j.Assoc.ID, usage[0]*wall, finishedAt)
	}
}

// AlterJob updates a running job's time limit, recomputing its
// cpu-run-seconds reservation and applying the signed delta (new -
// old) to every QoS in the pair and every association up the tree.
// It does not re-validate limits: a running job's current timeout
// check remains the safety net against an alter that overcommits a
// grp_cpu_run_mins ceiling (spec.md section 4.7).
func (e *Engine) AlterJob(j *job.Job, newTimeLimitMinutes uint64) Decision {
	unlock := e.locks.acquire(LockBundle{Assoc: LockWrite, QOS: LockWrite})
	defer unlock()

	old := j.ChargedCPURunSecs()
	j.TimeLimitMinutes = newTimeLimitMinutes
	neu := j.CPURunSecsReservation()
	delta := int64(neu) - int64(old)

	j.Assoc.AdjustCPURunSecs(delta)
	for _, q := range resolveQOSChain(j) {
		q.Lock()
		q.AdjustCPURunSecs(delta)
		q.Unlock()
	}
	j.SetChargedCPURunSecs(neu)

	return allow()
}
