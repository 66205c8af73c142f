package engine

import (
	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/config"
	"github.com/opentorque/acctpolicy/internal/job"
	"github.com/opentorque/acctpolicy/internal/limitset"
	"github.com/opentorque/acctpolicy/internal/partition"
	"github.com/opentorque/acctpolicy/internal/qos"
	"github.com/opentorque/acctpolicy/internal/reason"
	"github.com/opentorque/acctpolicy/internal/tres"
)

// Validate performs admission-time checks against the job's QoS pair
// and its association's ancestor chain, and installs the job's
// resolved wall time limit. Denials here are always terminal
// rejections of the submission, unlike the later hold/reject split of
// pre-/post-select runnability (spec.md section 4.2).
func (e *Engine) Validate(j *job.Job) Decision {
	unlock := e.locks.acquire(LockBundle{Assoc: LockRead, QOS: LockRead, User: LockRead})
	defer unlock()

	if j.Assoc == nil {
		return reject(reason.FailAccount, "job has no association")
	}

	chain := resolveQOSChain(j)
	acc := qos.NewAccumulator()
	qosTimeLimit := qos.Infinite

	if !e.cfg.Enforce(config.EnforceLimits) {
		for _, q := range chain {
			q.RLock()
			claim(&acc, q.Limits)
			q.RUnlock()
		}
		e.installTimeLimit(j, acc, qosTimeLimit)
		return allow()
	}

	for _, q := range chain {
		q.RLock()
		d, tl := checkAndClaimQOS(&acc, q, j)
		q.RUnlock()
		if !d.Allow {
			return d
		}
		qosTimeLimit = min64(qosTimeLimit, tl)
	}

	for i, a := range j.Assoc.Chain() {
		a.RLock()
		d := checkAssocAdmission(a, j, &acc, i == 0)
		a.RUnlock()
		if !d.Allow {
			return d
		}
	}

	e.installTimeLimit(j, acc, qosTimeLimit)
	return allow()
}

// claimAndCheck checks qval against check only if no earlier QoS in
// the chain has already claimed this slot (*acc still Infinite) and
// qval itself is finite; on success it claims the slot for the rest
// of the walk, mirroring `_set_qos_order`'s "first claim wins" rule.
func claimAndCheck(acc *uint64, qval uint64, check func(cap uint64) Decision) Decision {
	if *acc != qos.Infinite || qval == qos.Infinite {
		return allow()
	}
	*acc = qval
	return check(qval)
}

// checkAndClaimQOS validates one QoS's still-unclaimed limit slots
// against the job's request and live usage, claiming each as it
// checks it. max_cpu_mins_pj and max_wall_pj are derivation-only: they
// feed the installed time limit rather than rejecting the submission
// outright, since no wall time has been fixed yet at this point
// (spec.md section 4.2, step 2).
func checkAndClaimQOS(acc *qos.Limits, q *qos.QoS, j *job.Job) (Decision, uint64) {
	qosTimeLimit := qos.Infinite
	uu := q.Usage.ForUser(j.UserID)

	checks := []func() Decision{
		func() Decision {
			return claimAndCheck(&acc.MaxCPUsPerUser, q.Limits.MaxCPUsPerUser, func(cap uint64) Decision {
				if j.ReqCPUs > remaining(cap, uu.CPUs) {
					return reject(reason.WaitQOSMaxCPUPerUser, "requested cpus exceed qos max_cpus_per_user")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.GrpCPUs, q.Limits.GrpCPUs, func(cap uint64) Decision {
				if j.ReqCPUs > remaining(cap, q.Usage.GrpUsedCPUs) {
					return reject(reason.WaitQOSGrpCPU, "requested cpus exceed qos grp_cpus")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.GrpMem, q.Limits.GrpMem, func(cap uint64) Decision {
				if j.ReqMemMB > remaining(cap, q.Usage.GrpUsedMem) {
					return reject(reason.WaitQOSGrpMemory, "requested memory exceeds qos grp_mem")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.MaxNodesPerUser, q.Limits.MaxNodesPerUser, func(cap uint64) Decision {
				if j.ReqNodes > remaining(cap, uu.Nodes) {
					return reject(reason.WaitQOSMaxNodePerUser, "requested nodes exceed qos max_nodes_per_user")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.GrpNodes, q.Limits.GrpNodes, func(cap uint64) Decision {
				if j.ReqNodes > remaining(cap, q.Usage.GrpUsedNodes) {
					return reject(reason.WaitQOSGrpNodes, "requested nodes exceed qos grp_nodes")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.GrpSubmitJobs, q.Limits.GrpSubmitJobs, func(cap uint64) Decision {
				if remaining(cap, q.Usage.GrpUsedSubmitJobs) < 1 {
					return reject(reason.WaitQOSGrpSubJob, "qos grp_submit_jobs limit reached")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.MaxCPUsPerJob, q.Limits.MaxCPUsPerJob, func(cap uint64) Decision {
				if j.ReqCPUs > cap {
					return reject(reason.WaitQOSMaxCPUPerJob, "requested cpus exceed qos max_cpus_per_job")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.MaxNodesPerJob, q.Limits.MaxNodesPerJob, func(cap uint64) Decision {
				if j.ReqNodes > cap {
					return reject(reason.WaitQOSMaxNodePerJob, "requested nodes exceed qos max_nodes_per_job")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.MaxSubmitJobsPerUser, q.Limits.MaxSubmitJobsPerUser, func(cap uint64) Decision {
				if remaining(cap, uu.SubmitJobs) < 1 {
					return reject(reason.WaitQOSMaxSubJob, "qos max_submit_jobs_per_user limit reached")
				}
				return allow()
			})
		},
		func() Decision {
			return claimAndCheck(&acc.MinCPUsPerJob, q.Limits.MinCPUsPerJob, func(cap uint64) Decision {
				if j.ReqCPUs < cap {
					return reject(reason.WaitQOSMinCPUs, "requested cpus below qos min_cpus_per_job")
				}
				return allow()
			})
		},
	}

	for _, c := range checks {
		if d := c(); !d.Allow {
			return d, qosTimeLimit
		}
	}

	if acc.MaxCPUMinsPerJob == qos.Infinite && q.Limits.MaxCPUMinsPerJob != qos.Infinite {
		acc.MaxCPUMinsPerJob = q.Limits.MaxCPUMinsPerJob
		if j.ReqCPUs > 0 {
			qosTimeLimit = q.Limits.MaxCPUMinsPerJob / j.ReqCPUs
		}
	}
	if acc.MaxWallPerJob == qos.Infinite && q.Limits.MaxWallPerJob != qos.Infinite {
		acc.MaxWallPerJob = q.Limits.MaxWallPerJob
	}

	return allow(), qosTimeLimit
}

// checkAssocAdmission validates a job's requested resources against
// one association's group ceilings (every level) and per-job
// ceilings (leaf only), mirroring `_validate_tres_limits`'s walk from
// leaf to root. A resource already claimed by a QoS, or pinned
// admin-set on the job, is skipped here (spec.md section 4.2, step 3).
func checkAssocAdmission(a *assoc.Association, j *job.Job, acc *qos.Limits, isLeaf bool) Decision {
	if acc.GrpCPUs == qos.Infinite && !limitset.IsAdminSet(j.Limits.MaxTRES[tres.CPU]) {
		if cap := a.Limits.GrpTRES.Find(tres.CPU); cap != tres.Infinite && j.ReqCPUs > remaining(cap, a.Usage.GrpUsedTRES.Find(tres.CPU)) {
			return reject(reason.WaitAssocGrpCPU, "requested cpus exceed association grp_tres")
		}
	}
	if acc.GrpMem == qos.Infinite && !limitset.IsAdminSet(j.Limits.MaxTRES[tres.Mem]) {
		if cap := a.Limits.GrpTRES.Find(tres.Mem); cap != tres.Infinite && j.ReqMemMB > remaining(cap, a.Usage.GrpUsedTRES.Find(tres.Mem)) {
			return reject(reason.WaitAssocGrpMemory, "requested memory exceeds association grp_tres")
		}
	}
	if acc.GrpNodes == qos.Infinite && !limitset.IsAdminSet(j.Limits.MaxNodes) {
		if cap := a.Limits.GrpTRES.Find(tres.Node); cap != tres.Infinite && j.ReqNodes > remaining(cap, a.Usage.GrpUsedTRES.Find(tres.Node)) {
			return reject(reason.WaitAssocGrpNodes, "requested nodes exceed association grp_tres")
		}
	}
	if a.Limits.GrpSubmitJobs != assoc.Infinite && remaining(a.Limits.GrpSubmitJobs, a.Usage.GrpUsedSubmitJobs) < 1 {
		return reject(reason.WaitAssocGrpSubJob, "association grp_submit_jobs limit reached")
	}
	if a.Limits.GrpWallMins != assoc.Infinite && a.Usage.GrpUsedWallSecs/60 >= a.Limits.GrpWallMins {
		return reject(reason.WaitAssocGrpWall, "association grp_wall budget exhausted")
	}

	if !isLeaf {
		return allow()
	}

	if maxCPU := a.Limits.MaxTRESPerJob.Find(tres.CPU); maxCPU != tres.Infinite && j.ReqCPUs > maxCPU {
		return reject(reason.WaitAssocMaxCPUsPerJob, "requested cpus exceed association max_tres_per_job")
	}
	if a.Limits.MaxNodesPerJob != assoc.Infinite && j.ReqNodes > a.Limits.MaxNodesPerJob {
		return reject(reason.WaitAssocMaxNodePerJob, "requested nodes exceed association max_nodes_per_job")
	}
	if a.Limits.MaxSubmitJobs != assoc.Infinite && remaining(a.Limits.MaxSubmitJobs, a.Usage.GrpUsedSubmitJobs) < 1 {
		return reject(reason.WaitAssocMaxSubJob, "association max_submit_jobs limit reached")
	}
	if a.Limits.MaxWallPerJob != assoc.Infinite && j.ReqWallMin != 0 && j.ReqWallMin > a.Limits.MaxWallPerJob {
		return reject(reason.WaitAssocMaxWallPerJob, "requested wall time exceeds association max_wall_per_job")
	}
	return allow()
}

// installTimeLimit resolves the enforceable wall time limit from the
// job's own request, the QoS accumulator (including qosTimeLimit
// derived from max_cpu_mins_pj), the partition's ceiling, and every
// association in the chain, taking the tightest finite value. An
// admin-pinned time limit (limitset.AdminSet) is left untouched.
// limitset.PolicySet is only recorded when the job requested no wall
// time at all; a request the engine merely tightened keeps its
// Unset mark, so a later re-validation can tell a user-supplied limit
// from a core-derived one (spec.md section 4.2, step 4).
func (e *Engine) installTimeLimit(j *job.Job, acc qos.Limits, qosTimeLimit uint64) {
	if j.Limits.Time == limitset.AdminSet {
		return
	}

	requested := j.ReqWallMin != 0

	limit := j.ReqWallMin
	if !requested {
		limit = qos.Infinite
	}
	if j.Partition != nil && j.Partition.MaxWallMinutes != partition.Infinite {
		limit = min64(limit, j.Partition.MaxWallMinutes)
	}
	if acc.MaxWallPerJob != qos.Infinite {
		limit = min64(limit, acc.MaxWallPerJob)
	}
	if qosTimeLimit != qos.Infinite {
		limit = min64(limit, qosTimeLimit)
	}
	for _, a := range j.Assoc.Chain() {
		a.RLock()
		m := a.Limits.MaxWallPerJob
		a.RUnlock()
		if m != assoc.Infinite {
			limit = min64(limit, m)
		}
	}

	j.TimeLimitMinutes = limit
	if !requested {
		j.Limits.Time = limitset.PolicySet
	}
}
