package engine

import (
	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/job"
	"github.com/opentorque/acctpolicy/internal/qos"
	"github.com/opentorque/acctpolicy/internal/reason"
	"github.com/opentorque/acctpolicy/internal/tres"
)

// GetMaxNodes computes the largest node count a job could run with
// right now, together with the reason code identifying which limit
// won (spec.md section 4.8). The QoS pair is merged into a single set
// of fields first — the secondary QoS fills in only the fields the
// primary left Infinite, the same first-claim rule `_set_qos_order`
// applies everywhere else — then `max_nodes_pj`/`max_nodes_pu`
// precedence and `grp_nodes` are resolved from that merged set.
// Association limits are then consulted only for whichever of
// max_nodes_pj/grp_nodes the QoS pair left unclaimed, walking the
// chain outward and stopping at the first ancestor whose grp_nodes
// tightens the cap; an ancestor whose grp_nodes is not below the
// current cap does not stop the walk.
func (e *Engine) GetMaxNodes(j *job.Job) (uint64, reason.Code) {
	unlock := e.locks.acquire(LockBundle{Assoc: LockRead, QOS: LockRead})
	defer unlock()

	max := qos.Infinite
	r := reason.NoReason

	chain := resolveQOSChain(j)
	haveQOS := len(chain) > 0

	maxNodesPJ, maxNodesPU, grpNodes := qos.Infinite, qos.Infinite, qos.Infinite
	if haveQOS {
		primary := chain[0]
		primary.RLock()
		maxNodesPJ = primary.Limits.MaxNodesPerJob
		maxNodesPU = primary.Limits.MaxNodesPerUser
		grpNodes = primary.Limits.GrpNodes
		primary.RUnlock()

		if len(chain) > 1 {
			secondary := chain[1]
			secondary.RLock()
			if maxNodesPJ == qos.Infinite {
				maxNodesPJ = secondary.Limits.MaxNodesPerJob
			}
			if maxNodesPU == qos.Infinite {
				maxNodesPU = secondary.Limits.MaxNodesPerUser
			}
			if grpNodes == qos.Infinite {
				grpNodes = secondary.Limits.GrpNodes
			}
			secondary.RUnlock()
		}

		if maxNodesPJ < maxNodesPU {
			max = maxNodesPJ
			r = reason.WaitQOSMaxNodePerJob
		} else if maxNodesPU != qos.Infinite {
			max = maxNodesPU
			r = reason.WaitQOSMaxNodePerUser
		}
	}

	qosMaxPLimit := max

	if grpNodes < max {
		max = grpNodes
		r = reason.WaitQOSGrpNodes
	}

	grpSet := false
	for i, a := range j.Assoc.Chain() {
		isLeaf := i == 0

		a.RLock()
		assocGrpNodes := a.Limits.GrpTRES.Find(tres.Node)
		assocMaxNodesPJ := a.Limits.MaxNodesPerJob
		a.RUnlock()

		if (!haveQOS || grpNodes == qos.Infinite) && assocGrpNodes != tres.Infinite && assocGrpNodes < max {
			max = assocGrpNodes
			r = reason.WaitAssocGrpNodes
			grpSet = true
		}

		if isLeaf && qosMaxPLimit == qos.Infinite && assocMaxNodesPJ != assoc.Infinite && assocMaxNodesPJ < max {
			max = assocMaxNodesPJ
			r = reason.WaitAssocMaxNodePerJob
		}

		if grpSet {
			break
		}
	}

	return max, r
}

// UpdatePendingJob clears a stale limit-wait reason and re-runs
// Validate, so a pending job whose configuration changed (a QoS
// raised its ceiling, an admin altered the association) starts its
// next scheduling pass with fresh admission results instead of
// carrying forward a hold reason from before the change (spec.md
// section 4.8).
func (e *Engine) UpdatePendingJob(j *job.Job) Decision {
	if reason.IsLimitWait(j.StateReason) {
		j.SetHold(reason.NoReason, "")
	}
	return e.Validate(j)
}
