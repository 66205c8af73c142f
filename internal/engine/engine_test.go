package engine

import (
	"testing"
	"time"

	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/config"
	"github.com/opentorque/acctpolicy/internal/job"
	"github.com/opentorque/acctpolicy/internal/partition"
	"github.com/opentorque/acctpolicy/internal/qos"
	"github.com/opentorque/acctpolicy/internal/reason"
	"github.com/opentorque/acctpolicy/internal/tres"
)

func newTestJob(a *assoc.Association, q *qos.QoS, p *partition.Partition, cpus, nodes, memMB uint64) *job.Job {
	j := job.New(1, 42, a.Account, p.Name, cpus, nodes, memMB)
	j.Assoc = a
	j.QOS = q
	j.Partition = p
	return j
}

func TestValidateRejectsOverMaxCPUsPerJob(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	q.Limits.MaxCPUsPerJob = 8
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 16, 1, 1024)

	d := e.Validate(j)
	if d.Allow || d.Reason != reason.WaitQOSMaxCPUPerJob {
		t.Fatalf("expected rejection for over-max cpus, got %+v", d)
	}
	if !d.Terminal {
		t.Error("Validate denials must always be terminal")
	}
}

func TestValidateInstallsTightestTimeLimit(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	q.Limits.MaxWallPerJob = 120
	p := partition.New("batch")
	p.MaxWallMinutes = 60

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024)
	j.ReqWallMin = 500

	d := e.Validate(j)
	if !d.Allow {
		t.Fatalf("expected admission, got %+v", d)
	}
	if j.TimeLimitMinutes != 60 {
		t.Errorf("TimeLimitMinutes = %d, want 60 (tightest of 500/120/60)", j.TimeLimitMinutes)
	}
}

func TestJobRunnablePreSelectHoldsOnGroupLimit(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	q.Limits.GrpJobs = 2
	q.Usage.GrpUsedJobs = 2
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024)

	d := e.JobRunnablePreSelect(j)
	if d.Allow {
		t.Fatal("expected hold, job admitted")
	}
	if d.Terminal {
		t.Error("non-DENY_LIMIT group violation should hold, not reject")
	}
	if d.Reason != reason.WaitQOSGrpJob {
		t.Errorf("reason = %v, want WaitQOSGrpJob", d.Reason)
	}
}

func TestJobRunnablePreSelectDenyLimitRejects(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	q.Limits.GrpJobs = 2
	q.Usage.GrpUsedJobs = 2
	q.Flags.DenyLimit = true
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024)

	d := e.JobRunnablePreSelect(j)
	if d.Allow || !d.Terminal {
		t.Fatalf("expected terminal rejection under DENY_LIMIT, got %+v", d)
	}
}

func TestJobRunnablePostSelectHoldsOnGroupCPULimit(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	q.Limits.GrpCPUs = 10
	q.Usage.GrpUsedCPUs = 8
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024) // needs 4 more, only 2 left

	d := e.JobRunnablePostSelect(j, 1, 4, 1024)
	if d.Allow {
		t.Fatal("expected hold, job admitted")
	}
	if d.Terminal {
		t.Error("non-DENY_LIMIT group violation should hold, not reject")
	}
	if d.Reason != reason.WaitQOSGrpCPU {
		t.Errorf("reason = %v, want WaitQOSGrpCPU", d.Reason)
	}
}

func TestJobBeginFiniSymmetryAcrossEngine(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 2, 1024)

	e.AddJobSubmit(j)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.JobBegin(j, start)

	if root.Usage.GrpUsedTRES[tres.CPU] != 4 {
		t.Fatalf("expected 4 cpus charged at root, got %d", root.Usage.GrpUsedTRES[tres.CPU])
	}

	end := start.Add(time.Hour)
	e.JobFini(j, end)

	if root.Usage.GrpUsedTRES[tres.CPU] != 0 || root.Usage.GrpUsedJobs != 0 {
		t.Errorf("usage not fully reversed: %+v", root.Usage)
	}
	if q.Usage.GrpUsedCPUs != 0 {
		t.Errorf("qos usage not fully reversed: %+v", q.Usage)
	}
	if j.State != job.StateFinished {
		t.Errorf("job state = %v, want Finished", j.State)
	}
}

func TestJobRunnablePostSelectSafeLimitsRejectsInsufficientBudget(t *testing.T) {
	root := assoc.New(1, "root", 0)
	root.Limits.GrpTRESMins[tres.CPU] = 100 // only 100 cpu-minutes ever allowed
	q := qos.New("normal")
	p := partition.New("batch")

	cfg := config.New()
	cfg.SetEnforce("limits", "safe")
	e := New(cfg, nil, nil)

	j := newTestJob(root, q, p, 4, 1, 1024)
	j.TimeLimitMinutes = 60 // needs 4*60 = 240 cpu-minutes, budget is 100

	d := e.JobRunnablePostSelect(j, 1, 4, 1024)
	if d.Allow {
		t.Fatal("expected safe-limits rejection, job was admitted")
	}
	if d.Reason != reason.WaitAssocGrpCPUMin {
		t.Errorf("reason = %v, want WaitAssocGrpCPUMin", d.Reason)
	}
}

func TestJobTimeOutSuppressedInSafeMode(t *testing.T) {
	root := assoc.New(1, "root", 0)
	physics := assoc.New(2, "physics", 0)
	physics.SetParent(root)
	physics.Limits.GrpWallMins = 10
	physics.Usage.GrpUsedWallSecs = 20 * 60 // already over budget
	q := qos.New("normal")
	p := partition.New("batch")

	cfg := config.New()
	cfg.SetEnforce("limits", "safe")
	e := New(cfg, nil, nil)
	j := newTestJob(physics, q, p, 4, 1, 1024)

	d := e.JobTimeOut(j)
	if !d.Allow {
		t.Fatal("safe-limits mode must suppress runtime timeout enforcement")
	}
}

func TestJobTimeOutFiresWithoutSafeMode(t *testing.T) {
	root := assoc.New(1, "root", 0)
	physics := assoc.New(2, "physics", 0)
	physics.SetParent(root)
	physics.Limits.GrpWallMins = 10
	physics.Usage.GrpUsedWallSecs = 20 * 60
	q := qos.New("normal")
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(physics, q, p, 4, 1, 1024)

	d := e.JobTimeOut(j)
	if d.Allow || d.Reason != reason.FailTimeout {
		t.Fatalf("expected FailTimeout, got %+v", d)
	}
	if j.StateReason != reason.FailTimeout {
		t.Errorf("StateReason not set on the job: %v", j.StateReason)
	}
}

func TestJobTimeOutIgnoresRootAssociationBudget(t *testing.T) {
	root := assoc.New(1, "root", 0)
	root.Limits.GrpWallMins = 10
	root.Usage.GrpUsedWallSecs = 20 * 60 // root's own budget is exempt
	physics := assoc.New(2, "physics", 0)
	physics.SetParent(root)
	q := qos.New("normal")
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(physics, q, p, 4, 1, 1024)

	d := e.JobTimeOut(j)
	if !d.Allow {
		t.Fatalf("root association's own limits must not be enforced, got %+v", d)
	}
}

func TestJobTimeOutFiresOnAssocGroupCPUMinutes(t *testing.T) {
	root := assoc.New(1, "root", 0)
	physics := assoc.New(2, "physics", 0)
	physics.SetParent(root)
	physics.Limits.GrpTRESMins[tres.CPU] = 100
	physics.Usage.UsageRawSecs = 200 * 60 // 200 cpu-minutes already consumed
	q := qos.New("normal")
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(physics, q, p, 4, 1, 1024)

	d := e.JobTimeOut(j)
	if d.Allow || d.Reason != reason.FailTimeout {
		t.Fatalf("expected FailTimeout on exhausted grp_cpu_mins, got %+v", d)
	}
}

func TestJobTimeOutFiresOnMaxCPUMinsPerJob(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	q.Limits.MaxCPUMinsPerJob = 100
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024)
	j.StartTime = time.Now().Add(-60 * time.Minute) // 60 min * 4 cpus = 240 cpu-mins

	d := e.JobTimeOut(j)
	if d.Allow || d.Reason != reason.FailTimeout {
		t.Fatalf("expected FailTimeout on exhausted max_cpu_mins_per_job, got %+v", d)
	}
}

func TestJobTimeOutQOSClaimGatesAssociationCheck(t *testing.T) {
	root := assoc.New(1, "root", 0)
	physics := assoc.New(2, "physics", 0)
	physics.SetParent(root)
	physics.Limits.GrpWallMins = 10
	physics.Usage.GrpUsedWallSecs = 20 * 60 // would fail without the QoS claim
	q := qos.New("normal")
	q.Limits.GrpWallMins = 1000 // claims the slot; job is well within it
	q.Usage.GrpUsedWallSecs = 5 * 60
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(physics, q, p, 4, 1, 1024)

	d := e.JobTimeOut(j)
	if !d.Allow {
		t.Fatalf("QoS's claimed grp_wall must gate out the association's own check, got %+v", d)
	}
}

func TestGetMaxNodesStopsAtClosestAncestorGrpNodes(t *testing.T) {
	root := assoc.New(1, "root", 0)
	root.Limits.GrpTRES[tres.Node] = 2 // distant ceiling, should be ignored
	child := assoc.New(2, "physics", 0)
	child.Limits.GrpTRES[tres.Node] = 20
	child.SetParent(root)

	q := qos.New("normal")
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(child, q, p, 4, 1, 1024)

	max, _ := e.GetMaxNodes(j)
	if max != 20 {
		t.Errorf("GetMaxNodes = %d, want 20 (closest ancestor wins, not root's 2)", max)
	}
}

func TestGetMaxNodesQOSPairMergeKeepsPrimaryPerJobCap(t *testing.T) {
	root := assoc.New(1, "root", 0)
	a := qos.New("a")
	a.Limits.MaxNodesPerJob = 10
	a.Flags.PartQOS = true // job QoS outranks the partition QoS
	b := qos.New("b")
	b.Limits.MaxNodesPerJob = 5

	p := partition.New("batch")
	p.QOS = b

	e := New(config.New(), nil, nil)
	j := newTestJob(root, a, p, 4, 1, 1024)

	max, r := e.GetMaxNodes(j)
	if max != 10 {
		t.Errorf("GetMaxNodes = %d, want 10 (primary claims max_nodes_pj, B's 5 is ignored)", max)
	}
	if r != reason.WaitQOSMaxNodePerJob {
		t.Errorf("reason = %v, want WaitQOSMaxNodePerJob", r)
	}
}

func TestGetMaxNodesPerUserCapWhenNoPerJobCap(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	q.Limits.MaxNodesPerUser = 6
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024)

	max, r := e.GetMaxNodes(j)
	if max != 6 {
		t.Errorf("GetMaxNodes = %d, want 6 (max_nodes_pu used when max_nodes_pj is unset)", max)
	}
	if r != reason.WaitQOSMaxNodePerUser {
		t.Errorf("reason = %v, want WaitQOSMaxNodePerUser", r)
	}
}

func TestAlterJobAdjustsCPURunSecsByExactDelta(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024)
	j.TimeLimitMinutes = 30

	e.AddJobSubmit(j)
	e.JobBegin(j, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if q.Usage.GrpUsedCPURunSecs != 4*30*60 {
		t.Fatalf("initial cpu-run-secs = %d, want %d", q.Usage.GrpUsedCPURunSecs, 4*30*60)
	}

	d := e.AlterJob(j, 60)
	if !d.Allow {
		t.Fatalf("alter should always succeed, got %+v", d)
	}
	if q.Usage.GrpUsedCPURunSecs != 4*60*60 {
		t.Errorf("GrpUsedCPURunSecs = %d, want %d (delta of exactly %d)", q.Usage.GrpUsedCPURunSecs, 4*60*60, 4*30*60)
	}
	if j.TimeLimitMinutes != 60 {
		t.Errorf("TimeLimitMinutes = %d, want 60", j.TimeLimitMinutes)
	}
}

func TestUpdatePendingJobClearsLimitWait(t *testing.T) {
	root := assoc.New(1, "root", 0)
	q := qos.New("normal")
	p := partition.New("batch")

	e := New(config.New(), nil, nil)
	j := newTestJob(root, q, p, 4, 1, 1024)
	j.SetHold(reason.WaitQOSGrpCPU, "stale")

	d := e.UpdatePendingJob(j)
	if !d.Allow {
		t.Fatalf("expected admission after clearing stale hold, got %+v", d)
	}
	if j.StateReason != reason.NoReason {
		t.Errorf("stale hold reason not cleared: %v", j.StateReason)
	}
}
