package assoc

import (
	log "github.com/sirupsen/logrus"

	"github.com/opentorque/acctpolicy/internal/tres"
)

func clampSubU64(field *uint64, delta uint64, accountName, counter string) {
	if delta > *field {
		log.WithFields(log.Fields{
			"account": accountName,
			"counter": counter,
			"have":    *field,
			"remove":  delta,
		}).Warn("association usage underflow, clamping to zero")
		*field = 0
		return
	}
	*field -= delta
}

func clampSubVec(v *[3]uint64, delta [3]uint64, accountName string) {
	names := [3]string{"cpu", "mem", "node"}
	for i := range v {
		if delta[i] > v[i] {
			log.WithFields(log.Fields{
				"account":  accountName,
				"resource": names[i],
				"have":     v[i],
				"remove":   delta[i],
			}).Warn("association tres usage underflow, clamping to zero")
			v[i] = 0
			continue
		}
		v[i] -= delta[i]
	}
}

// AddSubmit charges a and every ancestor with one pending submission,
// mirroring ADD_SUBMIT walking the assoc chain to the root.
func (a *Association) AddSubmit() {
	for _, cur := range a.Chain() {
		cur.Usage.GrpUsedSubmitJobs++
	}
}

// RemoveSubmit reverses AddSubmit up the same chain.
func (a *Association) RemoveSubmit() {
	for _, cur := range a.Chain() {
		clampSubU64(&cur.Usage.GrpUsedSubmitJobs, 1, cur.Account, "grp_used_submit_jobs")
	}
}

// Begin charges running-resource usage and the cpu-run-seconds
// reservation into a and every ancestor.
func (a *Association) Begin(usage [3]uint64, cpuRunSecs uint64) {
	for _, cur := range a.Chain() {
		cur.Usage.GrpUsedJobs++
		for i := 0; i < 3; i++ {
			cur.Usage.GrpUsedTRES[i] += usage[i]
		}
		cur.Usage.GrpUsedTRESRunMins[tres.CPU] += cpuRunSecs
	}
}

// Fini reverses exactly what Begin added — including the charged
// cpu-run-seconds reservation, not a value recomputed from current
// configuration — plus wall-clock and historical cpu-usage accrual,
// walking the same chain (spec.md invariant: begin/finish symmetry
// computed from the job's own snapshot).
func (a *Association) Fini(usage [3]uint64, chargedCPURunSecs, wallSecs uint64) {
	for _, cur := range a.Chain() {
		clampSubU64(&cur.Usage.GrpUsedJobs, 1, cur.Account, "grp_used_jobs")
		clampSubVec((*[3]uint64)(&cur.Usage.GrpUsedTRES), usage, cur.Account)
		clampSubU64(&cur.Usage.GrpUsedTRESRunMins[tres.CPU], chargedCPURunSecs, cur.Account, "grp_used_tres_run_mins_cpu")
		cur.Usage.GrpUsedWallSecs += wallSecs
		cur.Usage.UsageRawSecs += float64(usage[tres.CPU]) * float64(wallSecs)
	}
}

// AdjustCPURunSecs applies a signed delta to the cpu-run-seconds
// reservation at a and every ancestor, used by AlterJob when a
// running job's time limit changes (spec.md section 4.7).
func (a *Association) AdjustCPURunSecs(delta int64) {
	for _, cur := range a.Chain() {
		if delta >= 0 {
			cur.Usage.GrpUsedTRESRunMins[tres.CPU] += uint64(delta)
			continue
		}
		clampSubU64(&cur.Usage.GrpUsedTRESRunMins[tres.CPU], uint64(-delta), cur.Account, "grp_used_tres_run_mins_cpu")
	}
}

