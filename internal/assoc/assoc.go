// Package assoc implements the association tree: the hierarchical
// account/user records the engine charges usage against and walks to
// the root when applying group limits (spec.md section 3,
// "Association record").
package assoc

import (
	"sync"

	"github.com/opentorque/acctpolicy/internal/tres"
)

// Infinite re-exports the shared disabled-limit sentinel.
const Infinite = tres.Infinite

// Limits holds every group/per-job/per-submission ceiling an
// association can carry directly (as opposed to inherited from a QoS).
// Fields absent here (max_cpus_pu, etc.) are QoS-only; associations
// track group totals and per-job/per-submit ceilings but not a
// separate per-user split, mirroring slurmdb_assoc_rec_t's shape.
type Limits struct {
	GrpTRES       tres.Vector // grp_tres: group resource ceiling
	GrpTRESMins   tres.Vector // grp_tres_mins: group cpu/mem-minutes ceiling
	GrpTRESRunMins tres.Vector // grp_tres_run_mins: group *running* resource-minutes
	GrpJobs        uint64
	GrpSubmitJobs  uint64
	GrpWallMins    uint64

	MaxTRESPerJob     tres.Vector
	MaxTRESMinsPerJob tres.Vector
	MaxJobs           uint64
	MaxSubmitJobs     uint64
	MaxNodesPerJob    uint64
	MaxWallPerJob     uint64
}

// NewLimits returns a Limits value with every scalar and vector slot
// disabled.
func NewLimits() Limits {
	return Limits{
		GrpTRES:           tres.NewInfinite(),
		GrpTRESMins:       tres.NewInfinite(),
		GrpTRESRunMins:    tres.NewInfinite(),
		GrpJobs:           Infinite,
		GrpSubmitJobs:     Infinite,
		GrpWallMins:       Infinite,
		MaxTRESPerJob:     tres.NewInfinite(),
		MaxTRESMinsPerJob: tres.NewInfinite(),
		MaxJobs:           Infinite,
		MaxSubmitJobs:     Infinite,
		MaxNodesPerJob:    Infinite,
		MaxWallPerJob:     Infinite,
	}
}

// Usage is an association's live accounting state, charged directly
// by jobs submitted under it and rolled up into every ancestor when a
// group limit is checked (spec.md invariant: "usage propagates from a
// child association up to the root on every mutation").
type Usage struct {
	GrpUsedJobs       uint64
	GrpUsedSubmitJobs uint64
	GrpUsedTRES       tres.Vector // running resource counts, e.g. cpus/mem/nodes in use
	// GrpUsedTRESRunMins holds, per resource, the cpu-run-seconds
	// currently reserved by running jobs (only the CPU slot is
	// populated; spec.md tracks grp_cpu_run_mins as a cpu-only
	// ceiling). Despite the "mins" name inherited from the persisted
	// grp_tres_run_mins field, this counter is kept in seconds, like
	// GrpUsedWallSecs, and divided by 60 at comparison time.
	GrpUsedTRESRunMins tres.Vector
	GrpUsedWallSecs   uint64
	// UsageRawSecs is the historical cpu-seconds this association has
	// consumed across every finished job, the association analogue of
	// qos.Usage.UsageRaw (spec.md section 3, "Associations also carry
	// live-usage counters analogous to QoS").
	UsageRawSecs float64
}

// NewUsage returns a zero-valued Usage (running counts start at zero,
// not Infinite — usage vectors are counts, not limits).
func NewUsage() Usage {
	var u Usage
	return u
}

// Association is one node in the account tree: an (account, user)
// pair, or a pure account node when UserID is zero (spec.md's
// "account-only" association used for group rollups).
type Association struct {
	mu sync.RWMutex

	ID       uint32
	Account  string
	UserID   uint32 // 0 for an account-level (no user) association
	Parent   *Association
	Limits   Limits
	Usage    Usage
	DefaultQOS *string // nil if the association names no default QoS
}

// New creates a leaf association with every limit disabled and no
// parent; call SetParent to attach it into a tree.
func New(id uint32, account string, uid uint32) *Association {
	return &Association{
		ID:      id,
		Account: account,
		UserID:  uid,
		Limits:  NewLimits(),
		Usage:   NewUsage(),
	}
}

// SetParent attaches a into the tree under p. Association trees in
// this engine are built once at load time by the accounting-storage
// collaborator (internal/collab), not mutated concurrently with
// lookups, so no additional locking guards the Parent pointer itself.
func (a *Association) SetParent(p *Association) { a.Parent = p }

func (a *Association) Lock()    { a.mu.Lock() }
func (a *Association) Unlock()  { a.mu.Unlock() }
func (a *Association) RLock()   { a.mu.RLock() }
func (a *Association) RUnlock() { a.mu.RUnlock() }

// Chain returns the path from a up to the root, starting with a
// itself, mirroring the original's `assoc_ptr = assoc_ptr->usage->
// parent_assoc_ptr` walk used to apply group limits at every
// ancestor.
func (a *Association) Chain() []*Association {
	var chain []*Association
	for cur := a; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	return chain
}
