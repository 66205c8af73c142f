package job

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Manager is a lightweight registry of jobs the engine knows about,
// used by the CLI and tests to look up and enumerate jobs by id, user,
// or state. It is not a scheduler: it assigns no priority and makes no
// placement decisions.
type Manager struct {
	mu        sync.RWMutex
	jobs      map[uint64]*Job
	nextJobID uint64

	stateCounts [3]int // indexed by State
}

// NewManager creates an empty job manager.
func NewManager() *Manager {
	return &Manager{jobs: make(map[uint64]*Job)}
}

// NextJobID allocates a new, unused job id.
func (m *Manager) NextJobID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextJobID++
	return m.nextJobID
}

// Add registers j in the manager.
func (m *Manager) Add(j *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	m.stateCounts[j.State]++
	log.WithFields(log.Fields{
		"job":     j.ID,
		"state":   j.State,
		"account": j.Account,
	}).Debug("job registered")
}

// Remove drops a job from the manager.
func (m *Manager) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		m.stateCounts[j.State]--
		delete(m.jobs, id)
	}
}

// Get looks up a job by id.
func (m *Manager) Get(id uint64) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok
}

// SetState transitions a registered job to a new state, keeping the
// manager's state counters consistent. The engine's usage mutators
// set Job.State directly and do not call SetState, so the counters
// only follow transitions made through this method.
func (m *Manager) SetState(id uint64, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return
	}
	m.stateCounts[j.State]--
	j.State = s
	m.stateCounts[s]++
}

// All returns a snapshot of every registered job.
func (m *Manager) All() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out
}

// StateCount returns the number of jobs currently in state s.
func (m *Manager) StateCount(s State) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateCounts[s]
}

// CountByUser returns the number of jobs owned by uid in state s.
func (m *Manager) CountByUser(uid uint32, s State) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, j := range m.jobs {
		if j.UserID == uid && j.State == s {
			count++
		}
	}
	return count
}
