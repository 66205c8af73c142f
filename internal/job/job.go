// Package job implements the Job record the accounting policy engine
// validates and charges usage against (spec.md section 3, "Job
// record").
package job

import (
	"sync"
	"time"

	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/limitset"
	"github.com/opentorque/acctpolicy/internal/partition"
	"github.com/opentorque/acctpolicy/internal/qos"
	"github.com/opentorque/acctpolicy/internal/reason"
)

// MemPerCPUFlag is the high-bit marker on a per-node minimum-memory
// value indicating it should be interpreted as per-CPU rather than
// per-node (spec.md section 6, MEM_PER_CPU).
const MemPerCPUFlag uint64 = 1 << 63

// State mirrors the slice of the job lifecycle this engine drives
// directly: pending admission, running, and finished. A caller's own
// scheduler owns the full state machine; the engine only reads and
// advances these three phases through its mutator operations.
type State int

const (
	StatePending State = iota
	StateRunning
	StateFinished
)

var stateNames = map[State]string{
	StatePending:  "PENDING",
	StateRunning:  "RUNNING",
	StateFinished: "FINISHED",
}

// String implements fmt.Stringer for log/status output.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Job is one request moving through admission, execution, and
// completion. Resource fields are snapshotted at admission time so
// JobFini can reverse exactly what JobBegin charged, independent of
// any limit reconfiguration while the job runs (spec.md invariant:
// begin/finish symmetry computed from the job's own snapshot).
type Job struct {
	Mu sync.RWMutex

	ID       uint64
	UserID   uint32
	Account  string
	PartName string

	Assoc     *assoc.Association
	QOS       *qos.QoS
	Partition *partition.Partition

	// Requested resources, as submitted.
	ReqCPUs    uint64
	ReqNodes   uint64
	ReqMemMB   uint64
	ReqWallMin uint64 // 0 means "no limit requested"; resolved at validation

	// Limits records which request fields were admin-pinned vs.
	// policy-derived, so re-validation knows what it may still adjust.
	Limits limitset.LimitSet

	// TimeLimitMinutes is the resolved, enforceable wall-time ceiling
	// installed by Validate (spec.md section 4.1).
	TimeLimitMinutes uint64

	State State

	SubmitTime time.Time
	StartTime  time.Time
	EndTime    time.Time

	StateReason reason.Code
	StateDesc   string

	// chargedCPURunSecs is the cpu-run-seconds reservation
	// (total_cpus * time_limit * 60) JobBegin charged into the job's
	// QoS pair and association chain. JobFini and AlterJob reverse or
	// adjust exactly this value rather than recomputing it from
	// current configuration (spec.md invariant 6).
	chargedCPURunSecs uint64
}

// New creates a pending job with every limit slot unset.
func New(id uint64, uid uint32, account, partName string, cpus, nodes, memMB uint64) *Job {
	return &Job{
		ID:       id,
		UserID:   uid,
		Account:  account,
		PartName: partName,
		ReqCPUs:  cpus,
		ReqNodes: nodes,
		ReqMemMB: memMB,
		Limits:   limitset.New(),
		State:    StatePending,
	}
}

// SetHold records why a job cannot proceed.
func (j *Job) SetHold(r reason.Code, desc string) {
	j.StateReason = r
	j.StateDesc = desc
}

// RunningUsage returns the [cpu, mem, node] snapshot this job charges
// while running, in the fixed resource order internal/tres defines.
func (j *Job) RunningUsage() [3]uint64 {
	return [3]uint64{j.ReqCPUs, j.ReqMemMB, j.ReqNodes}
}

// CPURunSecsReservation returns the cpu-run-seconds this job reserves
// against grp_cpu_run_mins ceilings at its current cpu count and time
// limit: total_cpus * time_limit_minutes * 60 (spec.md section 4.6,
// JOB_BEGIN's used_cpu_run_secs).
func (j *Job) CPURunSecsReservation() uint64 {
	return j.ReqCPUs * j.TimeLimitMinutes * 60
}

// ChargedCPURunSecs returns the reservation JobBegin actually charged
// (frozen at begin time), used by JobFini to reverse exactly what was
// added regardless of any later configuration change.
func (j *Job) ChargedCPURunSecs() uint64 { return j.chargedCPURunSecs }

// SetChargedCPURunSecs records the reservation JobBegin or AlterJob
// just charged.
func (j *Job) SetChargedCPURunSecs(secs uint64) { j.chargedCPURunSecs = secs }

// NormalizedMemory computes job_memory from a per-node/per-CPU minimum
// memory value: if the MemPerCPUFlag high bit is set, the value is
// per-CPU and scales by cpuCnt; otherwise it is per-node and scales by
// nodeCnt (spec.md section 4.4, "Memory normalization").
func NormalizedMemory(pnMinMem, cpuCnt, nodeCnt uint64) uint64 {
	if pnMinMem&MemPerCPUFlag != 0 {
		return (pnMinMem &^ MemPerCPUFlag) * cpuCnt
	}
	return pnMinMem * nodeCnt
}

// WallSeconds returns the elapsed run time as of EndTime (or now, if
// still running), used to accrue wall/cpu-run-minute usage on finish.
func (j *Job) WallSeconds(now time.Time) uint64 {
	if j.StartTime.IsZero() {
		return 0
	}
	end := j.EndTime
	if end.IsZero() {
		end = now
	}
	if end.Before(j.StartTime) {
		return 0
	}
	return uint64(end.Sub(j.StartTime).Seconds())
}
