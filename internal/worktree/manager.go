// Package worktree provisions and removes the per-stage git worktrees
// that anchor the workflow. All git operations go through the exec
// runner as argument vectors with bounded timeouts.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	pexec "github.com/fyrsmithlabs/stagehand/internal/exec"
	"github.com/fyrsmithlabs/stagehand/internal/project"
)

// launchScriptName is the helper script written into each new worktree.
const launchScriptName = "launch-agent.sh"

// nameRe bounds feature names defensively: the CLI sanitizes upstream,
// but names still flow into branch refs and filesystem paths.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const maxNameLength = 100

// Manager creates, recreates, and removes stage worktrees.
type Manager struct {
	runner  pexec.Runner
	proj    *project.Context
	logger  *zap.Logger
	timeout time.Duration
}

// NewManager creates a worktree manager.
func NewManager(runner pexec.Runner, proj *project.Context, logger *zap.Logger, timeout time.Duration) (*Manager, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if proj == nil {
		return nil, errors.New("project context is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{runner: runner, proj: proj, logger: logger, timeout: timeout}, nil
}

// Path returns the worktree path for a stage.
func (m *Manager) Path(stage Stage) string {
	return filepath.Join(m.proj.WorktreesRoot, string(stage))
}

// Exists reports whether the stage's worktree directory is on disk.
func (m *Manager) Exists(stage Stage) bool {
	info, err := os.Stat(m.Path(stage))
	return err == nil && info.IsDir()
}

// Create provisions the worktree for a stage on branch {stage}/{name}.
// Creation is idempotent: an existing worktree at the target path is
// removed and replaced. If the branch already exists, the worktree is
// attached to it instead of failing.
func (m *Manager) Create(ctx context.Context, stage Stage, name string) (*Descriptor, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.proj.WorktreesRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create worktrees root: %w", err)
	}

	path := m.Path(stage)
	branch := stage.Branch(name)

	if _, err := os.Stat(path); err == nil {
		if err := m.removeExisting(ctx, path); err != nil {
			return nil, err
		}
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.runner.CombinedOutput(cctx, m.proj.RepoRoot,
		"git", "worktree", "add", "-b", branch, path)
	if err != nil {
		// The branch may survive a previous worktree; attach to it
		// instead of creating a new one.
		if strings.Contains(string(out), "already exists") {
			m.logger.Info("branch exists, attaching worktree",
				zap.String("branch", branch), zap.String("path", path))
			out, err = m.runner.CombinedOutput(cctx, m.proj.RepoRoot,
				"git", "worktree", "add", path, branch)
		}
		if err != nil {
			return nil, fmt.Errorf("git worktree add failed: %w: %s", err, strings.TrimSpace(string(out)))
		}
	}

	if err := m.writeLaunchScript(path, stage, name, branch); err != nil {
		m.logger.Warn("failed to write launch script", zap.String("path", path), zap.Error(err))
	}

	// Re-query the worktree list; absence means creation silently
	// failed and must be surfaced.
	entries, err := m.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not verify: %v", ErrCreationFailed, err)
	}
	found := false
	for _, e := range entries {
		if e.Path == path {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s missing from worktree list", ErrCreationFailed, path)
	}

	m.logger.Info("worktree created",
		zap.String("stage", string(stage)),
		zap.String("branch", branch),
		zap.String("path", path))

	return &Descriptor{Stage: stage, Path: path, Branch: branch}, nil
}

// CreateAll provisions all four stage worktrees for name. A per-stage
// failure is recorded and does not abort the remaining stages.
func (m *Manager) CreateAll(ctx context.Context, name string) ([]*Descriptor, error) {
	var descs []*Descriptor
	var errs []error
	for _, stage := range AllStages() {
		d, err := m.Create(ctx, stage, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", stage, err))
			continue
		}
		descs = append(descs, d)
	}
	return descs, errors.Join(errs...)
}

// RemoveAll deletes the worktrees root entirely and prunes stale
// worktree registrations. Missing state is a no-op.
func (m *Manager) RemoveAll(ctx context.Context) error {
	if _, err := os.Stat(m.proj.WorktreesRoot); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(m.proj.WorktreesRoot); err != nil {
		return fmt.Errorf("failed to remove worktrees root: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.runner.Run(cctx, m.proj.RepoRoot, "git", "worktree", "prune"); err != nil {
		m.logger.Warn("git worktree prune failed", zap.Error(err))
	}

	m.logger.Info("worktrees removed", zap.String("root", m.proj.WorktreesRoot))
	return nil
}

// List returns the repository's current worktrees.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.runner.Output(cctx, m.proj.RepoRoot, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git worktree list failed: %w", err)
	}
	return parseWorktreeList(string(out)), nil
}

// removeExisting clears a stale worktree at path: a clean git removal
// first, falling back to a forced filesystem delete plus prune.
func (m *Manager) removeExisting(ctx context.Context, path string) error {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.runner.Run(cctx, m.proj.RepoRoot, "git", "worktree", "remove", "--force", path); err != nil {
		m.logger.Warn("git worktree remove failed, forcing filesystem delete",
			zap.String("path", path), zap.Error(err))
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("failed to remove stale worktree %s: %w", path, rmErr)
		}
		if pruneErr := m.runner.Run(cctx, m.proj.RepoRoot, "git", "worktree", "prune"); pruneErr != nil {
			m.logger.Warn("git worktree prune failed", zap.Error(pruneErr))
		}
	}
	return nil
}

// writeLaunchScript records stage, feature name, and branch in a helper
// script agents can source or exec when starting work in the worktree.
func (m *Manager) writeLaunchScript(path string, stage Stage, name, branch string) error {
	script := fmt.Sprintf(`#!/bin/bash
# Generated by stagehand. Records the identity of this worktree for
# agents launched inside it.
export STAGEHAND_STAGE=%q
export STAGEHAND_FEATURE=%q
export STAGEHAND_BRANCH=%q

exec "$@"
`, string(stage), name, branch)
	return os.WriteFile(filepath.Join(path, launchScriptName), []byte(script), 0755)
}

// parseWorktreeList parses `git worktree list --porcelain` output.
func parseWorktreeList(out string) []Entry {
	var entries []Entry
	var cur *Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur != nil {
				entries = append(entries, *cur)
			}
			cur = &Entry{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD ") && cur != nil:
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch ") && cur != nil:
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "" && cur != nil:
			entries = append(entries, *cur)
			cur = nil
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries
}

// validateName rejects names that could traverse paths or smuggle
// unexpected characters into branch refs.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains traversal sequence", ErrInvalidName, name)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
