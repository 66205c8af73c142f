// Package partition implements the Partition record: a named job
// destination carrying an optional default QoS and its own wall-time
// ceiling (spec.md section 3, "Partition record").
package partition

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/opentorque/acctpolicy/internal/qos"
)

// Partition is a scheduling destination. Unlike the teacher's Queue,
// it carries no ACL or routing state: authorization and job routing
// are out of this engine's scope, and a partition here exists only to
// supply a QoS and a wall-time ceiling to the precedence resolver.
type Partition struct {
	Mu sync.RWMutex

	Name string

	// MaxWallMinutes is the partition's own per-job wall-time ceiling;
	// Infinite if unset. It participates in time-limit resolution
	// alongside QoS/association limits: the tightest finite value of
	// all of them is installed (spec.md section 4.2).
	MaxWallMinutes uint64

	// QOS is the partition's QoS. It precedes the job's own QoS in
	// precedence ordering unless the job's QoS carries the PartQOS
	// flag, and it is the only QoS when the job names none of its own
	// (spec.md section 4.1 precedence ordering).
	QOS *qos.QoS
}

// Infinite mirrors the shared disabled-limit sentinel for partition
// scalar limits.
const Infinite = ^uint64(0)

// New creates a partition with no wall-time ceiling and no QoS.
func New(name string) *Partition {
	return &Partition{Name: name, MaxWallMinutes: Infinite}
}

// Manager tracks every partition known to the engine, populated by the
// accounting-storage collaborator at startup.
type Manager struct {
	mu         sync.RWMutex
	partitions map[string]*Partition
}

// NewManager creates an empty partition manager.
func NewManager() *Manager {
	return &Manager{partitions: make(map[string]*Partition)}
}

// Add registers p, replacing any existing partition of the same name.
func (m *Manager) Add(p *Partition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions[p.Name] = p
	log.WithField("partition", p.Name).Debug("partition registered")
}

// Get looks up a partition by name.
func (m *Manager) Get(name string) (*Partition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partitions[name]
	return p, ok
}

// Remove drops a partition by name, reporting whether it existed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.partitions[name]; ok {
		delete(m.partitions, name)
		return true
	}
	return false
}

// All returns every registered partition, for CLI/diagnostic listing.
func (m *Manager) All() []*Partition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Partition, 0, len(m.partitions))
	for _, p := range m.partitions {
		out = append(out, p)
	}
	return out
}
