package engine

import (
	"time"

	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/config"
	"github.com/opentorque/acctpolicy/internal/job"
	"github.com/opentorque/acctpolicy/internal/qos"
	"github.com/opentorque/acctpolicy/internal/reason"
	"github.com/opentorque/acctpolicy/internal/tres"
)

// JobTimeOut reports whether a running job must be terminated because
// its QoS or association budget has been exhausted while it ran —
// independent of the job's own per-job time limit, which a caller
// enforces separately. Three conditions are checked, each gated by the
// QoS pair's first-claim rule: the historical cpu-minute budget
// (usage_raw), the group wall-time budget, and the per-job cpu-minute
// budget against time actually spent running. In safe-limits mode this
// check is suppressed entirely: a job admitted under
// ACCOUNTING_ENFORCE_SAFE already proved at post-select that it could
// finish within budget, so continuing to police the budget at runtime
// would only kill jobs the safe-limits admission check already
// promised would fit (spec.md section 4.6).
func (e *Engine) JobTimeOut(j *job.Job) Decision {
	if e.cfg.Enforce(config.EnforceSafe) {
		return allow()
	}
	if !e.cfg.Enforce(config.EnforceLimits) {
		return allow()
	}

	unlock := e.locks.acquire(LockBundle{Assoc: LockRead, QOS: LockRead})
	defer unlock()

	jobCPUUsageMins := (j.WallSeconds(time.Now()) / 60) * j.ReqCPUs

	grpCPUMinsClaim := qos.Infinite
	grpWallMinsClaim := qos.Infinite
	maxCPUMinsPJClaim := qos.Infinite

	for _, q := range resolveQOSChain(j) {
		q.RLock()
		d := checkQOSTimeOut(q, &grpCPUMinsClaim, &grpWallMinsClaim, &maxCPUMinsPJClaim, jobCPUUsageMins)
		q.RUnlock()
		if !d.Allow {
			j.SetHold(d.Reason, d.Desc)
			return d
		}
	}

	// These limits don't apply to the root association: stop once the
	// walk reaches it rather than checking it.
	for _, a := range j.Assoc.Chain() {
		if a.Parent == nil {
			break
		}
		a.RLock()
		d := checkAssocTimeOut(a, grpCPUMinsClaim, grpWallMinsClaim, maxCPUMinsPJClaim, jobCPUUsageMins)
		a.RUnlock()
		if !d.Allow {
			j.SetHold(d.Reason, d.Desc)
			return d
		}
	}

	return allow()
}

// checkQOSTimeOut checks one QoS's still-unclaimed budget slots
// against its live usage, claiming each as it checks it so a later
// QoS in the pair never overrides an earlier claim — the idea being
// that QoS trumps what an association has set for a limit (mirroring
// `_qos_job_time_out`).
func checkQOSTimeOut(q *qos.QoS, grpCPUMinsClaim, grpWallMinsClaim, maxCPUMinsPJClaim *uint64, jobCPUUsageMins uint64) Decision {
	usageMins := uint64(q.Usage.UsageRaw / 60)
	wallMins := q.Usage.GrpUsedWallSecs / 60

	if d := claimAndCheck(grpCPUMinsClaim, q.Limits.GrpCPUMins, func(cap uint64) Decision {
		if usageMins >= cap {
			return reject(reason.FailTimeout, "qos group cpu-minute budget exhausted")
		}
		return allow()
	}); !d.Allow {
		return d
	}
	if d := claimAndCheck(grpWallMinsClaim, q.Limits.GrpWallMins, func(cap uint64) Decision {
		if wallMins >= cap {
			return reject(reason.FailTimeout, "qos group wall-time budget exhausted")
		}
		return allow()
	}); !d.Allow {
		return d
	}
	if d := claimAndCheck(maxCPUMinsPJClaim, q.Limits.MaxCPUMinsPerJob, func(cap uint64) Decision {
		if jobCPUUsageMins >= cap {
			return reject(reason.FailTimeout, "job cpu-minute usage exceeds qos max_cpu_mins_per_job")
		}
		return allow()
	}); !d.Allow {
		return d
	}
	return allow()
}

// checkAssocTimeOut checks one association's budget slots, each gated
// by whether a QoS already claimed that slot — an association never
// gets its own first-claim walk among ancestors, it is simply skipped
// entirely once any QoS in the pair has an opinion on that slot
// (mirroring the original's `qos_rec.X == INFINITE` gates inside the
// association while-loop).
func checkAssocTimeOut(a *assoc.Association, grpCPUMinsClaim, grpWallMinsClaim, maxCPUMinsPJClaim uint64, jobCPUUsageMins uint64) Decision {
	usageMins := uint64(a.Usage.UsageRawSecs / 60)
	wallMins := a.Usage.GrpUsedWallSecs / 60

	if grpCPUMinsClaim == qos.Infinite {
		if cap := a.Limits.GrpTRESMins.Find(tres.CPU); cap != tres.Infinite && usageMins >= cap {
			return reject(reason.FailTimeout, "association group cpu-minute budget exhausted")
		}
	}
	if grpWallMinsClaim == qos.Infinite {
		if a.Limits.GrpWallMins != assoc.Infinite && wallMins >= a.Limits.GrpWallMins {
			return reject(reason.FailTimeout, "association group wall-time budget exhausted")
		}
	}
	if maxCPUMinsPJClaim == qos.Infinite {
		if cap := a.Limits.MaxTRESMinsPerJob.Find(tres.CPU); cap != tres.Infinite && jobCPUUsageMins >= cap {
			return reject(reason.FailTimeout, "job cpu-minute usage exceeds association max_tres_mins_per_job")
		}
	}
	return allow()
}
