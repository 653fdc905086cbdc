// Package agent spawns background task executions in detached sessions,
// tracks their liveness, captures their output, and terminates them on
// demand. One Supervisor owns one Registry; callers obtain both by
// constructor injection.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// WorktreeChecker is the slice of the worktree manager the supervisor
// needs: existence and path of a stage's worktree.
type WorktreeChecker interface {
	Exists(stage worktree.Stage) bool
	Path(stage worktree.Stage) string
}

// CompletionFunc is invoked (in its own goroutine) when an agent's
// session is detected to have ended on its own.
type CompletionFunc func(stage worktree.Stage)

// Supervisor spawns and supervises agents.
type Supervisor struct {
	registry      *Registry
	host          session.Host
	worktrees     WorktreeChecker
	logger        *zap.Logger
	pollInterval  time.Duration
	sessionPrefix string

	mu         sync.Mutex
	stops      map[string]chan struct{}
	onComplete CompletionFunc
	closed     bool
	wg         sync.WaitGroup
}

// Options configures a Supervisor.
type Options struct {
	// PollInterval is the per-agent liveness check period.
	PollInterval time.Duration

	// SessionPrefix prefixes session names in the host.
	SessionPrefix string
}

// NewSupervisor creates a supervisor over the given registry, session
// host, and worktree checker.
func NewSupervisor(reg *Registry, host session.Host, worktrees WorktreeChecker, logger *zap.Logger, opts Options) (*Supervisor, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if host == nil {
		return nil, errors.New("session host is required")
	}
	if worktrees == nil {
		return nil, errors.New("worktree checker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.SessionPrefix == "" {
		opts.SessionPrefix = "stagehand"
	}
	return &Supervisor{
		registry:      reg,
		host:          host,
		worktrees:     worktrees,
		logger:        logger,
		pollInterval:  opts.PollInterval,
		sessionPrefix: opts.SessionPrefix,
		stops:         make(map[string]chan struct{}),
	}, nil
}

// OnAgentComplete registers the completion hook. The coordinator uses
// this to scan for signal files when an agent's session ends.
func (s *Supervisor) OnAgentComplete(fn CompletionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

// Registry exposes the owned registry for read-side consumers.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Spawn starts command as a detached session rooted at the stage's
// worktree and registers a running agent record. It returns once the
// session is confirmed started, not when the task completes.
func (s *Supervisor) Spawn(ctx context.Context, stage worktree.Stage, task, command string) (*Agent, error) {
	if _, err := worktree.ParseStage(string(stage)); err != nil {
		return nil, err
	}
	if !s.worktrees.Exists(stage) {
		return nil, fmt.Errorf("%w: %s (create it first)", ErrWorktreeNotFound, stage)
	}
	if command == "" {
		return nil, errors.New("command cannot be empty")
	}

	id := newAgentID()
	sessionName := fmt.Sprintf("%s-%s", s.sessionPrefix, id)
	dir := s.worktrees.Path(stage)

	if err := s.host.Start(ctx, sessionName, dir, command); err != nil {
		return nil, fmt.Errorf("failed to start agent session: %w", err)
	}

	pid, err := s.host.PanePID(ctx, sessionName)
	if err != nil {
		// The session may have already finished a fast command; the
		// record is still valid without a pid.
		s.logger.Warn("could not resolve agent pid",
			zap.String("agent", id), zap.Error(err))
		pid = 0
	}

	a := &Agent{
		ID:          id,
		Stage:       stage,
		Task:        task,
		Status:      StatusRunning,
		PID:         pid,
		SessionName: sessionName,
		StartedAt:   time.Now(),
	}
	s.registry.Add(a)
	s.watch(a.ID, a.Stage, sessionName)

	s.logger.Info("agent spawned",
		zap.String("agent", id),
		zap.String("stage", string(stage)),
		zap.String("task", task),
		zap.Int("pid", pid))

	return a, nil
}

// Status returns the record for id, or all records when id is empty.
// Unknown ids yield an empty slice, not an error.
func (s *Supervisor) Status(id string) []Agent {
	if id == "" {
		return s.registry.List()
	}
	if a, ok := s.registry.Get(id); ok {
		return []Agent{a}
	}
	return nil
}

// Kill terminates the agent's session and, when a pid was recorded,
// signals the process directly as well. The record is marked failed
// with a completion timestamp even if the session had already exited.
func (s *Supervisor) Kill(ctx context.Context, id string) error {
	a, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	var killErr error
	if a.SessionName != "" {
		killErr = s.host.Kill(ctx, a.SessionName)
	}
	if a.PID > 0 {
		// Direct signal as defense in depth against session-host
		// failures. The process may already be gone.
		if proc, err := os.FindProcess(a.PID); err == nil {
			_ = proc.Signal(syscall.SIGTERM)
		}
	}

	s.registry.Fail(id)
	s.stopWatcher(id)

	if killErr != nil {
		s.logger.Warn("session kill reported an error; record marked failed anyway",
			zap.String("agent", id), zap.Error(killErr))
	}
	s.logger.Info("agent killed", zap.String("agent", id))
	return nil
}

// Logs captures the trailing lines of the agent's session output.
// Agents without a session handle, or whose session is gone, get an
// explanatory placeholder rather than an error.
func (s *Supervisor) Logs(ctx context.Context, id string, lines int) (string, error) {
	a, ok := s.registry.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	if a.SessionName == "" {
		return fmt.Sprintf("agent %s has no session attached; no logs available", id), nil
	}
	out, err := s.host.Capture(ctx, a.SessionName, lines)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return fmt.Sprintf("session %s has ended; logs are no longer available", a.SessionName), nil
		}
		return "", err
	}
	return out, nil
}

// Close stops all liveness watchers and waits for them to exit.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, stop := range s.stops {
		close(stop)
		delete(s.stops, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// watch starts the per-agent liveness poller.
func (s *Supervisor) watch(id string, stage worktree.Stage, sessionName string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.stops[id] = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if s.host.Alive(context.Background(), sessionName) {
					continue
				}
				// Completed never overwrites a kill-induced failed.
				if s.registry.Complete(id) {
					s.logger.Info("agent completed",
						zap.String("agent", id), zap.String("stage", string(stage)))
					s.fireCompletion(stage)
				}
				s.stopWatcher(id)
				return
			}
		}
	}()
}

// stopWatcher cancels the poller for id if one is running.
func (s *Supervisor) stopWatcher(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.stops[id]; ok {
		close(stop)
		delete(s.stops, id)
	}
}

// fireCompletion invokes the completion hook asynchronously so a slow
// coordinator cannot stall liveness polling.
func (s *Supervisor) fireCompletion(stage worktree.Stage) {
	s.mu.Lock()
	fn := s.onComplete
	s.mu.Unlock()
	if fn == nil {
		return
	}
	go fn(stage)
}
