// Package qos implements QoS limit records and live usage counters
// (spec.md section 3, "QoS record" / "QoS live usage").
package qos

import (
	"sync"

	"github.com/opentorque/acctpolicy/internal/tres"
)

// Infinite re-exports the shared disabled-limit sentinel so call sites
// in this package don't need to import tres just for the constant.
const Infinite = tres.Infinite

// Limits holds every finite-or-disabled limit slot a QoS can carry.
// It also serves as the "qos_out" claim accumulator (design notes):
// the precedence resolver and every admission/runnability/timeout
// check share this same type, starting all-Infinite and filling in
// slots as the first QoS in iteration order claims them.
type Limits struct {
	// Group totals.
	GrpCPUs       uint64
	GrpNodes      uint64
	GrpMem        uint64
	GrpJobs       uint64
	GrpSubmitJobs uint64
	GrpWallMins   uint64
	GrpCPUMins    uint64
	GrpCPURunMins uint64

	// Per-job.
	MaxCPUsPerJob    uint64
	MinCPUsPerJob    uint64
	MaxNodesPerJob   uint64
	MaxWallPerJob    uint64
	MaxCPUMinsPerJob uint64

	// Per-user.
	MaxCPUsPerUser      uint64
	MaxNodesPerUser     uint64
	MaxJobsPerUser      uint64
	MaxSubmitJobsPerUser uint64
}

// NewAccumulator returns a Limits value with every slot disabled, the
// starting point for a precedence-resolved claim walk.
func NewAccumulator() Limits {
	return Limits{
		GrpCPUs: Infinite, GrpNodes: Infinite, GrpMem: Infinite,
		GrpJobs: Infinite, GrpSubmitJobs: Infinite, GrpWallMins: Infinite,
		GrpCPUMins: Infinite, GrpCPURunMins: Infinite,
		MaxCPUsPerJob: Infinite, MinCPUsPerJob: Infinite,
		MaxNodesPerJob: Infinite, MaxWallPerJob: Infinite,
		MaxCPUMinsPerJob: Infinite,
		MaxCPUsPerUser:   Infinite, MaxNodesPerUser: Infinite,
		MaxJobsPerUser: Infinite, MaxSubmitJobsPerUser: Infinite,
	}
}

// Flags captures the two QoS behavior toggles spec.md section 3 names.
type Flags struct {
	// PartQOS means this QoS, when attached directly to a job,
	// overrides the partition's default QoS in precedence ordering.
	PartQOS bool
	// DenyLimit converts a would-be "hold pending" violation into a
	// terminal rejection at submission time.
	DenyLimit bool
}

// QoS is a named bundle of limits, independent of the account tree.
type QoS struct {
	mu sync.RWMutex

	Name   string
	Limits Limits
	Flags  Flags
	Usage  Usage
}

// New creates a QoS with every limit disabled.
func New(name string) *QoS {
	return &QoS{
		Name:   name,
		Limits: NewAccumulator(),
		Usage:  NewUsage(),
	}
}

// Lock/Unlock/RLock/RUnlock expose the QoS's own mutex so the engine's
// qos sub-lock can guard usage reads/writes independent of the
// association sub-lock (spec.md section 5).
func (q *QoS) Lock()    { q.mu.Lock() }
func (q *QoS) Unlock()  { q.mu.Unlock() }
func (q *QoS) RLock()   { q.mu.RLock() }
func (q *QoS) RUnlock() { q.mu.RUnlock() }
