// Package report renders human-readable snapshots of combined worktree,
// agent, and pending-change state. Everything here is read-only: the
// reporter never mutates worktrees, signals, or agent records.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	"github.com/fyrsmithlabs/stagehand/internal/coordinator"
	pexec "github.com/fyrsmithlabs/stagehand/internal/exec"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// WorktreeSource is the slice of the worktree manager the reporter reads.
type WorktreeSource interface {
	Path(stage worktree.Stage) string
	Exists(stage worktree.Stage) bool
	List(ctx context.Context) ([]worktree.Entry, error)
}

// Reporter aggregates orchestration state into text snapshots.
type Reporter struct {
	worktrees WorktreeSource
	registry  *agent.Registry
	runner    pexec.Runner
	logger    *zap.Logger

	// statusTimeout bounds each git status query; a slow or broken
	// repository degrades one line of the report, not the whole call.
	statusTimeout time.Duration
}

// NewReporter creates a reporter.
func NewReporter(worktrees WorktreeSource, registry *agent.Registry, runner pexec.Runner, logger *zap.Logger, statusTimeout time.Duration) (*Reporter, error) {
	if worktrees == nil {
		return nil, errors.New("worktree source is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if statusTimeout <= 0 {
		statusTimeout = 5 * time.Second
	}
	return &Reporter{
		worktrees:     worktrees,
		registry:      registry,
		runner:        runner,
		logger:        logger,
		statusTimeout: statusTimeout,
	}, nil
}

// WorktreeStatus renders the full orchestration snapshot: worktree
// inventory, agent counts and running detail, per-stage signal files,
// and per-stage pending-change counts.
func (r *Reporter) WorktreeStatus(ctx context.Context) (string, error) {
	var b strings.Builder

	b.WriteString("=== Worktrees ===\n")
	entries, err := r.worktrees.List(ctx)
	if err != nil {
		r.logger.Warn("worktree listing failed", zap.Error(err))
		b.WriteString("No worktrees found\n")
	} else if len(entries) == 0 {
		b.WriteString("No worktrees found\n")
	} else {
		for _, e := range entries {
			fmt.Fprintf(&b, "%s  %s  [%s]\n", e.Path, shortHead(e.Head), e.Branch)
		}
	}

	b.WriteString("\n=== Agents ===\n")
	r.writeAgents(&b)

	b.WriteString("\n=== Signals ===\n")
	for _, stage := range worktree.AllStages() {
		fmt.Fprintf(&b, "%s: %s\n", stage, r.signalSummary(stage))
	}

	b.WriteString("\n=== Pending Changes ===\n")
	for _, stage := range worktree.AllStages() {
		if !r.worktrees.Exists(stage) {
			fmt.Fprintf(&b, "%s: no worktree\n", stage)
			continue
		}
		changes, err := r.pendingChanges(ctx, stage)
		if err != nil {
			r.logger.Warn("git status failed",
				zap.String("stage", string(stage)), zap.Error(err))
			fmt.Fprintf(&b, "%s: unable to check\n", stage)
			continue
		}
		fmt.Fprintf(&b, "%s: %d pending change(s)\n", stage, changes.Total())
	}

	return b.String(), nil
}

// MonitorProgress renders a focused snapshot of one stage: signal files
// with timestamps, categorized pending changes, and whether an agent is
// active there. Signals touched within the since window are flagged.
func (r *Reporter) MonitorProgress(ctx context.Context, stage worktree.Stage, since time.Duration) (string, error) {
	if _, err := worktree.ParseStage(string(stage)); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s worktree ===\n", stage)

	if !r.worktrees.Exists(stage) {
		b.WriteString("No worktree provisioned\n")
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Path: %s\n", r.worktrees.Path(stage))

	b.WriteString("\nSignals:\n")
	dir := r.worktrees.Path(stage)
	cutoff := time.Now().Add(-since)
	for _, name := range coordinator.AllSignalFiles() {
		info, err := statFile(dir, name)
		if err != nil {
			fmt.Fprintf(&b, "  %s: absent\n", name)
			continue
		}
		line := fmt.Sprintf("  %s: %s", name, info.ModTime().Format(time.RFC3339))
		if since > 0 && info.ModTime().After(cutoff) {
			line += " (recent)"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\nPending changes:\n")
	changes, err := r.pendingChanges(ctx, stage)
	if err != nil {
		r.logger.Warn("git status failed",
			zap.String("stage", string(stage)), zap.Error(err))
		b.WriteString("  unable to check\n")
	} else if changes.Total() == 0 {
		b.WriteString("  clean\n")
	} else {
		writeCategory(&b, "added", changes.Added)
		writeCategory(&b, "modified", changes.Modified)
		writeCategory(&b, "deleted", changes.Deleted)
		writeCategory(&b, "untracked", changes.Untracked)
	}

	if r.registry.RunningForStage(stage) {
		b.WriteString("\nAgent active: yes\n")
	} else {
		b.WriteString("\nAgent active: no\n")
	}

	return b.String(), nil
}

// writeAgents renders counts by status plus one line per running agent.
func (r *Reporter) writeAgents(b *strings.Builder) {
	counts := r.registry.CountByStatus()
	fmt.Fprintf(b, "running: %d  completed: %d  failed: %d\n",
		counts[agent.StatusRunning], counts[agent.StatusCompleted], counts[agent.StatusFailed])

	agents := r.registry.List()
	for _, a := range agents {
		if a.Status != agent.StatusRunning {
			continue
		}
		fmt.Fprintf(b, "  %s  stage=%s  runtime=%s  session=%s  task=%s\n",
			a.ID, a.Stage, a.Runtime().Round(time.Second), a.SessionName, a.Task)
	}
	if len(agents) == 0 {
		b.WriteString("No agents recorded\n")
	}
}

// signalSummary lists which marker files are present in a stage's
// worktree, sorted for stable output.
func (r *Reporter) signalSummary(stage worktree.Stage) string {
	if !r.worktrees.Exists(stage) {
		return "no worktree"
	}
	dir := r.worktrees.Path(stage)
	var present []string
	for _, name := range coordinator.AllSignalFiles() {
		if _, err := statFile(dir, name); err == nil {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return "none"
	}
	sort.Strings(present)
	return strings.Join(present, ", ")
}

// ChangeSet is a categorized view of git status --porcelain output.
type ChangeSet struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Untracked []string
}

// Total returns the number of changed paths across all categories.
func (c ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted) + len(c.Untracked)
}

// pendingChanges queries and categorizes a stage worktree's status.
func (r *Reporter) pendingChanges(ctx context.Context, stage worktree.Stage) (ChangeSet, error) {
	cctx, cancel := context.WithTimeout(ctx, r.statusTimeout)
	defer cancel()

	out, err := r.runner.Output(cctx, r.worktrees.Path(stage), "git", "status", "--porcelain")
	if err != nil {
		return ChangeSet{}, fmt.Errorf("git status failed: %w", err)
	}
	return parsePorcelain(string(out)), nil
}

// parsePorcelain buckets porcelain status lines by change kind. Renames
// and copies count as modifications.
func parsePorcelain(out string) ChangeSet {
	var cs ChangeSet
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code, path := line[:2], strings.TrimSpace(line[3:])
		switch {
		case code == "??":
			cs.Untracked = append(cs.Untracked, path)
		case strings.ContainsAny(code, "D"):
			cs.Deleted = append(cs.Deleted, path)
		case strings.ContainsAny(code, "A"):
			cs.Added = append(cs.Added, path)
		default:
			cs.Modified = append(cs.Modified, path)
		}
	}
	return cs
}

func writeCategory(b *strings.Builder, label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s (%d):\n", label, len(paths))
	for _, p := range paths {
		fmt.Fprintf(b, "    %s\n", p)
	}
}

func statFile(dir, name string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(dir, name))
}

func shortHead(head string) string {
	if len(head) > 8 {
		return head[:8]
	}
	return head
}
