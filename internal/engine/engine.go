// Package engine implements the accounting policy core: admission
// validation, pre-/post-select runnability, runtime timeout
// evaluation, and usage mutation over the QoS/association/partition
// records the rest of this module defines (spec.md section 4).
package engine

import (
	"sync"

	"github.com/opentorque/acctpolicy/internal/collab"
	"github.com/opentorque/acctpolicy/internal/config"
)

// LockLevel is the access a caller needs on one of the engine's four
// sub-locks.
type LockLevel int

const (
	LockNone LockLevel = iota
	LockRead
	LockWrite
)

// LockBundle names the level requested on each of the engine's four
// sub-locks: association, QoS, user, and TRES definitions. Every
// engine entry point acquires its bundle in this fixed field order
// (association, then QoS, then user, then TRES) to prevent deadlock
// between callers requesting overlapping subsets (spec.md section 5).
type LockBundle struct {
	Assoc LockLevel
	QOS   LockLevel
	User  LockLevel
	TRES  LockLevel
}

// locks is the engine's four-sub-lock bundle. Individual QoS and
// Association records carry their own mutex for their Usage fields;
// these bundle locks guard the broader operation (which records get
// read or written together) rather than any single field, mirroring
// the original's assoc_mgr_lock/unlock bundle.
type locks struct {
	assoc, qos, user, tres sync.RWMutex
}

func acquireOne(mu *sync.RWMutex, level LockLevel, unlockers *[]func()) {
	switch level {
	case LockWrite:
		mu.Lock()
		*unlockers = append(*unlockers, mu.Unlock)
	case LockRead:
		mu.RLock()
		*unlockers = append(*unlockers, mu.RUnlock)
	}
}

// acquire locks the requested subset in fixed order and returns a
// release function that unlocks in reverse order.
func (l *locks) acquire(b LockBundle) func() {
	var unlockers []func()
	acquireOne(&l.assoc, b.Assoc, &unlockers)
	acquireOne(&l.qos, b.QOS, &unlockers)
	acquireOne(&l.user, b.User, &unlockers)
	acquireOne(&l.tres, b.TRES, &unlockers)
	return func() {
		for i := len(unlockers) - 1; i >= 0; i-- {
			unlockers[i]()
		}
	}
}

// Engine is the accounting policy core. It holds no job registry and
// no association/partition storage of its own: callers pass in the
// records an AssocResolver/PartitionResolver looked up, and the engine
// only validates and mutates them.
type Engine struct {
	locks locks

	cfg      *config.Config
	priority collab.PrioritySubsystem
	storage  collab.AccountingStorage
}

// New creates an engine over cfg. A nil priority/storage collaborator
// is replaced with a no-op implementation.
func New(cfg *config.Config, priority collab.PrioritySubsystem, storage collab.AccountingStorage) *Engine {
	if priority == nil {
		priority = collab.NoopPrioritySubsystem{}
	}
	if storage == nil {
		storage = collab.NoopAccountingStorage{}
	}
	return &Engine{cfg: cfg, priority: priority, storage: storage}
}
