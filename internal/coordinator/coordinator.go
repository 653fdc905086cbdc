// Package coordinator chains workflow stages by observing signal files
// inside stage worktrees. Two independent drivers feed it: the agent
// supervisor's completion hook triggers a one-shot scan, and a global
// interval scan (with an optional fsnotify fast path) catches signals
// dropped outside the supervisor's observation, such as a human
// touching the file manually.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// Spawner is the slice of the supervisor the coordinator needs.
type Spawner interface {
	Spawn(ctx context.Context, stage worktree.Stage, task, command string) (*agent.Agent, error)
}

// Options configures a Coordinator.
type Options struct {
	// ScanInterval is the global scan period.
	ScanInterval time.Duration

	// WatchEnabled adds an fsnotify watcher over worktree directories
	// for low-latency pickup between scans. Watch failures degrade to
	// polling only.
	WatchEnabled bool
}

// Coordinator consumes signal files and spawns next-stage agents.
type Coordinator struct {
	spawner   Spawner
	worktrees agent.WorktreeChecker
	logger    *zap.Logger
	interval  time.Duration
	watch     bool

	// stageMu serializes transitions within one stage; transitions
	// across stages interleave freely.
	stageMu map[worktree.Stage]*sync.Mutex
}

// NewCoordinator creates a coordinator.
func NewCoordinator(spawner Spawner, worktrees agent.WorktreeChecker, logger *zap.Logger, opts Options) (*Coordinator, error) {
	if spawner == nil {
		return nil, errors.New("spawner is required")
	}
	if worktrees == nil {
		return nil, errors.New("worktree checker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 15 * time.Second
	}

	stageMu := make(map[worktree.Stage]*sync.Mutex, len(worktree.AllStages()))
	for _, s := range worktree.AllStages() {
		stageMu[s] = &sync.Mutex{}
	}

	return &Coordinator{
		spawner:   spawner,
		worktrees: worktrees,
		logger:    logger,
		interval:  opts.ScanInterval,
		watch:     opts.WatchEnabled,
		stageMu:   stageMu,
	}, nil
}

// OnAgentComplete is the supervisor completion hook: a one-shot scan of
// the completed agent's stage.
func (c *Coordinator) OnAgentComplete(stage worktree.Stage) {
	if _, err := c.ScanStage(context.Background(), stage); err != nil {
		c.logger.Warn("post-completion signal scan failed",
			zap.String("stage", string(stage)), zap.Error(err))
	}
}

// ScanStage checks the stage's worktree for its signal file and, when
// present, consumes it and spawns the next stage's agent. Consumption
// is exactly-once: the file is deleted before the spawn, so a failed
// spawn loses the transition (logged, not retried).
//
// Returns true when a transition fired.
func (c *Coordinator) ScanStage(ctx context.Context, stage worktree.Stage) (bool, error) {
	mu, ok := c.stageMu[stage]
	if !ok {
		return false, fmt.Errorf("%w: %q", worktree.ErrInvalidStage, stage)
	}
	mu.Lock()
	defer mu.Unlock()

	trans, ok := TransitionFor(stage)
	if !ok {
		// Terminal stage: nothing chains out of docs.
		return false, nil
	}
	if !c.worktrees.Exists(stage) {
		return false, nil
	}

	signalPath := filepath.Join(c.worktrees.Path(stage), SignalFile(stage))
	if _, err := os.Stat(signalPath); err != nil {
		return false, nil
	}

	if err := os.Remove(signalPath); err != nil {
		// Lost a race with another consumer or the file vanished;
		// either way there is nothing left to transition on.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume signal %s: %w", signalPath, err)
	}

	c.logger.Info("signal consumed",
		zap.String("stage", string(stage)),
		zap.String("signal", SignalFile(stage)),
		zap.String("next", string(trans.Target)))

	if _, err := c.spawner.Spawn(ctx, trans.Target, trans.Task, trans.Command); err != nil {
		// The signal is already consumed; this transition is lost.
		c.logger.Warn("transition lost: signal consumed but next-stage spawn failed",
			zap.String("stage", string(stage)),
			zap.String("next", string(trans.Target)),
			zap.Error(err))
		return false, fmt.Errorf("next-stage spawn failed after consuming %s: %w", SignalFile(stage), err)
	}
	return true, nil
}

// ScanAll runs ScanStage over every chained stage.
func (c *Coordinator) ScanAll(ctx context.Context) {
	for stage := range chain {
		if _, err := c.ScanStage(ctx, stage); err != nil {
			c.logger.Warn("signal scan failed",
				zap.String("stage", string(stage)), zap.Error(err))
		}
	}
}

// Run drives the global scan loop until ctx is cancelled. With
// watching enabled, fsnotify events on worktree directories trigger
// immediate scans between ticks.
func (c *Coordinator) Run(ctx context.Context) error {
	var watcher *fsnotify.Watcher
	var events chan fsnotify.Event
	if c.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			c.logger.Warn("fsnotify unavailable, polling only", zap.Error(err))
		} else {
			watcher = w
			events = make(chan fsnotify.Event)
			defer watcher.Close()
			go c.forwardEvents(ctx, watcher, events)
		}
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.syncWatches(watcher)
	c.ScanAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Worktrees created since the last tick get watched too.
			c.syncWatches(watcher)
			c.ScanAll(ctx)
		case ev := <-events:
			if stage, ok := c.stageForEvent(ev); ok {
				if _, err := c.ScanStage(ctx, stage); err != nil {
					c.logger.Warn("event-driven scan failed",
						zap.String("stage", string(stage)), zap.Error(err))
				}
			}
		}
	}
}

// forwardEvents copies watcher events onto a single channel and logs
// watcher errors.
func (c *Coordinator) forwardEvents(ctx context.Context, watcher *fsnotify.Watcher, out chan<- fsnotify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("fsnotify error", zap.Error(err))
		}
	}
}

// syncWatches keeps the watcher covering every existing worktree
// directory. Re-adding an already watched path is a no-op.
func (c *Coordinator) syncWatches(watcher *fsnotify.Watcher) {
	if watcher == nil {
		return
	}
	for _, stage := range worktree.AllStages() {
		if !c.worktrees.Exists(stage) {
			continue
		}
		if err := watcher.Add(c.worktrees.Path(stage)); err != nil {
			c.logger.Debug("failed to watch worktree",
				zap.String("stage", string(stage)), zap.Error(err))
		}
	}
}

// stageForEvent maps a create/write event on a signal file to its
// stage. The stage is identified by the event's parent directory.
func (c *Coordinator) stageForEvent(ev fsnotify.Event) (worktree.Stage, bool) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return "", false
	}
	dir := filepath.Dir(ev.Name)
	stage, err := worktree.ParseStage(filepath.Base(dir))
	if err != nil {
		return "", false
	}
	if filepath.Base(ev.Name) != SignalFile(stage) {
		return "", false
	}
	return stage, true
}
