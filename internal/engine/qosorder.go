package engine

import (
	"github.com/opentorque/acctpolicy/internal/job"
	"github.com/opentorque/acctpolicy/internal/qos"
)

// resolveQOSChain returns the job's QoS and its partition's QoS in
// precedence order. By default the partition's QoS comes first; when
// the job's own QoS carries the PartQOS flag, the job's QoS comes
// first instead, so it "wins" the claim on any limit slot both QoS
// records set (spec.md section 4.1, `_set_qos_order` equivalent: the
// first QoS to set a finite value for a limit slot claims it; a later
// QoS's value for that same slot is ignored). A nil or duplicate
// partition QoS is dropped, so a job with no distinct partition QoS
// sees a single-element chain.
func resolveQOSChain(j *job.Job) []*qos.QoS {
	jobQOS := j.QOS
	var partQOS *qos.QoS
	if j.Partition != nil {
		partQOS = j.Partition.QOS
	}

	switch {
	case jobQOS == nil && partQOS == nil:
		return nil
	case jobQOS == nil:
		return []*qos.QoS{partQOS}
	case partQOS == nil || partQOS == jobQOS:
		return []*qos.QoS{jobQOS}
	case jobQOS.Flags.PartQOS:
		return []*qos.QoS{jobQOS, partQOS}
	default:
		return []*qos.QoS{partQOS, jobQOS}
	}
}

// claim fills any still-disabled slot of acc with q's value for that
// slot, so the first QoS in resolveQOSChain's order to carry a finite
// value for a given limit wins it permanently for this walk.
func claim(acc *qos.Limits, q qos.Limits) {
	claimU64(&acc.GrpCPUs, q.GrpCPUs)
	claimU64(&acc.GrpNodes, q.GrpNodes)
	claimU64(&acc.GrpMem, q.GrpMem)
	claimU64(&acc.GrpJobs, q.GrpJobs)
	claimU64(&acc.GrpSubmitJobs, q.GrpSubmitJobs)
	claimU64(&acc.GrpWallMins, q.GrpWallMins)
	claimU64(&acc.GrpCPUMins, q.GrpCPUMins)
	claimU64(&acc.GrpCPURunMins, q.GrpCPURunMins)

	claimU64(&acc.MaxCPUsPerJob, q.MaxCPUsPerJob)
	claimU64(&acc.MinCPUsPerJob, q.MinCPUsPerJob)
	claimU64(&acc.MaxNodesPerJob, q.MaxNodesPerJob)
	claimU64(&acc.MaxWallPerJob, q.MaxWallPerJob)
	claimU64(&acc.MaxCPUMinsPerJob, q.MaxCPUMinsPerJob)

	claimU64(&acc.MaxCPUsPerUser, q.MaxCPUsPerUser)
	claimU64(&acc.MaxNodesPerUser, q.MaxNodesPerUser)
	claimU64(&acc.MaxJobsPerUser, q.MaxJobsPerUser)
	claimU64(&acc.MaxSubmitJobsPerUser, q.MaxSubmitJobsPerUser)
}

func claimU64(dst *uint64, src uint64) {
	if *dst == qos.Infinite && src != qos.Infinite {
		*dst = src
	}
}

// remaining returns how much of a group ceiling is left given used,
// treating an Infinite ceiling as unbounded.
func remaining(limit, used uint64) uint64 {
	if limit == qos.Infinite {
		return qos.Infinite
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
