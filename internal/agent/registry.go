package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// Registry is the owned store of agent records. It is held by exactly
// one Supervisor instance and passed in by constructor injection; there
// is no package-level state.
//
// Terminal records are retained for historical status queries, capped
// at retention: when the cap is exceeded the oldest terminal records
// are evicted. Running agents are never evicted.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]*Agent
	retention int
}

// NewRegistry creates a registry retaining at most retention terminal
// records. A retention of 0 keeps no terminal history.
func NewRegistry(retention int) *Registry {
	return &Registry{
		agents:    make(map[string]*Agent),
		retention: retention,
	}
}

// Add registers a new agent record.
func (r *Registry) Add(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// List returns copies of all records ordered by start time.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// CountByStatus returns the number of agents per status.
func (r *Registry) CountByStatus() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Status]int)
	for _, a := range r.agents {
		counts[a.Status]++
	}
	return counts
}

// RunningForStage reports whether any running agent is bound to stage.
func (r *Registry) RunningForStage(stage worktree.Stage) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.Stage == stage && a.Status == StatusRunning {
			return true
		}
	}
	return false
}

// transition moves id to a terminal status. Terminal states never
// revert, and completed never overwrites failed.
func (r *Registry) transition(id string, to Status) bool {
	if !to.Terminal() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || a.Status.Terminal() {
		return false
	}
	now := time.Now()
	a.Status = to
	a.CompletedAt = &now
	r.evictLocked()
	return true
}

// Complete marks id completed. Returns false if unknown or already
// terminal.
func (r *Registry) Complete(id string) bool {
	return r.transition(id, StatusCompleted)
}

// Fail marks id failed. Returns false if unknown or already terminal.
func (r *Registry) Fail(id string) bool {
	return r.transition(id, StatusFailed)
}

// evictLocked drops the oldest terminal records beyond the retention
// cap. Caller holds the write lock.
func (r *Registry) evictLocked() {
	var terminal []*Agent
	for _, a := range r.agents {
		if a.Status.Terminal() {
			terminal = append(terminal, a)
		}
	}
	if len(terminal) <= r.retention {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].StartedAt.Before(terminal[j].StartedAt)
	})
	for _, a := range terminal[:len(terminal)-r.retention] {
		delete(r.agents, a.ID)
	}
}
