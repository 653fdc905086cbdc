package agent

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// Status is an agent's lifecycle state. Transitions are monotonic:
// running -> completed or failed, never back.
type Status string

const (
	// StatusRunning means the agent's session is (believed) alive.
	StatusRunning Status = "running"
	// StatusCompleted means the session ended on its own.
	StatusCompleted Status = "completed"
	// StatusFailed means the agent was killed or errored.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Agent is one spawned background task bound to a stage worktree.
type Agent struct {
	// ID is unique and never reused: agent-<unixmillis>-<random>.
	ID string `json:"id"`

	// Stage is the worktree this agent runs in.
	Stage worktree.Stage `json:"stage"`

	// Task is the free-text description of what the agent is doing.
	Task string `json:"task"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// PID is the session pane's process id, 0 when unresolved.
	PID int `json:"pid,omitempty"`

	// SessionName addresses the running task in the session host for
	// log capture and termination.
	SessionName string `json:"session_name,omitempty"`

	// StartedAt is when the session was confirmed started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is set on transition to a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Runtime returns how long the agent has been (or was) running.
func (a *Agent) Runtime() time.Duration {
	if a.CompletedAt != nil {
		return a.CompletedAt.Sub(a.StartedAt)
	}
	return time.Since(a.StartedAt)
}

var (
	// ErrAgentNotFound indicates an unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrWorktreeNotFound indicates a spawn against a stage whose
	// worktree has not been provisioned. Spawning never auto-creates
	// infrastructure.
	ErrWorktreeNotFound = errors.New("worktree not found")
)

// newAgentID allocates a fresh id: time component for ordering, random
// suffix for uniqueness.
func newAgentID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("agent-%d-%s", time.Now().UnixMilli(), suffix)
}
