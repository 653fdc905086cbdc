package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	"github.com/fyrsmithlabs/stagehand/internal/coordinator"
	pexec "github.com/fyrsmithlabs/stagehand/internal/exec"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// fakeSource is a WorktreeSource over a temp directory.
type fakeSource struct {
	root    string
	entries []worktree.Entry
	listErr error
}

func (f *fakeSource) Path(stage worktree.Stage) string {
	return filepath.Join(f.root, string(stage))
}

func (f *fakeSource) Exists(stage worktree.Stage) bool {
	info, err := os.Stat(f.Path(stage))
	return err == nil && info.IsDir()
}

func (f *fakeSource) List(ctx context.Context) ([]worktree.Entry, error) {
	return f.entries, f.listErr
}

func newTestReporter(t *testing.T, stages ...worktree.Stage) (*Reporter, *fakeSource, *agent.Registry, *pexec.MockRunner) {
	t.Helper()
	src := &fakeSource{root: t.TempDir()}
	for _, s := range stages {
		require.NoError(t, os.MkdirAll(src.Path(s), 0755))
	}
	registry := agent.NewRegistry(100)
	runner := pexec.NewMockRunner()
	r, err := NewReporter(src, registry, runner, zap.NewNop(), time.Second)
	require.NoError(t, err)
	return r, src, registry, runner
}

func TestWorktreeStatus_Empty(t *testing.T) {
	r, _, _, _ := newTestReporter(t)

	out, err := r.WorktreeStatus(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out, "No worktrees found")
	assert.Contains(t, out, "No agents recorded")
	assert.Contains(t, out, "feature: no worktree")
}

func TestWorktreeStatus_ListFailureDegrades(t *testing.T) {
	r, src, _, _ := newTestReporter(t)
	src.listErr = errors.New("not a git repository")

	out, err := r.WorktreeStatus(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "No worktrees found")
}

func TestWorktreeStatus_Full(t *testing.T) {
	r, src, registry, runner := newTestReporter(t, worktree.StageFeature, worktree.StageTest)
	src.entries = []worktree.Entry{
		{Path: src.Path(worktree.StageFeature), Head: "abcdef0123456789", Branch: "feature/login"},
		{Path: src.Path(worktree.StageTest), Head: "1234567890abcdef", Branch: "test/login"},
	}

	registry.Add(&agent.Agent{
		ID: "agent-1-aaaa", Stage: worktree.StageFeature, Task: "build login",
		Status: agent.StatusRunning, SessionName: "stagehand-agent-1-aaaa",
		StartedAt: time.Now().Add(-time.Minute),
	})
	registry.Add(&agent.Agent{ID: "agent-2-bbbb", Stage: worktree.StageTest,
		Status: agent.StatusRunning, StartedAt: time.Now()})
	registry.Complete("agent-2-bbbb")

	// Feature carries its completion marker; test is mid-flight.
	require.NoError(t, os.WriteFile(
		filepath.Join(src.Path(worktree.StageFeature), coordinator.SignalFeatureComplete), nil, 0644))

	runner.AddRule(func(dir, name string, args []string) bool {
		return dir == src.Path(worktree.StageFeature) && name == "git" && args[0] == "status"
	}, pexec.MockResponse{Stdout: []byte(" M main.go\n?? notes.txt\n")})

	out, err := r.WorktreeStatus(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out, "feature/login")
	assert.Contains(t, out, "abcdef01") // short head
	assert.Contains(t, out, "running: 1  completed: 1  failed: 0")
	assert.Contains(t, out, "agent-1-aaaa")
	assert.Contains(t, out, "task=build login")
	assert.Contains(t, out, "feature: "+coordinator.SignalFeatureComplete)
	assert.Contains(t, out, "test: none")
	assert.Contains(t, out, "feature: 2 pending change(s)")
	assert.Contains(t, out, "test: 0 pending change(s)")
	assert.Contains(t, out, "docs: no worktree")
}

func TestWorktreeStatus_StatusFailureDegrades(t *testing.T) {
	r, src, _, runner := newTestReporter(t, worktree.StageFeature)
	runner.AddRule(func(dir, name string, args []string) bool {
		return dir == src.Path(worktree.StageFeature)
	}, pexec.MockResponse{Err: errors.New("timeout")})

	out, err := r.WorktreeStatus(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "feature: unable to check")
}

func TestMonitorProgress(t *testing.T) {
	r, src, registry, runner := newTestReporter(t, worktree.StageTest)

	signal := filepath.Join(src.Path(worktree.StageTest), coordinator.SignalTestsComplete)
	require.NoError(t, os.WriteFile(signal, nil, 0644))

	registry.Add(&agent.Agent{ID: "agent-3-cccc", Stage: worktree.StageTest,
		Status: agent.StatusRunning, StartedAt: time.Now()})

	runner.AddPrefixMatch("git", []string{"status", "--porcelain"}, pexec.MockResponse{
		Stdout: []byte("A  new_test.go\n M old_test.go\n D gone.go\n?? scratch.txt\n"),
	})

	out, err := r.MonitorProgress(context.Background(), worktree.StageTest, time.Hour)
	require.NoError(t, err)

	assert.Contains(t, out, coordinator.SignalTestsComplete+": 2") // RFC3339 year prefix
	assert.Contains(t, out, "(recent)")
	assert.Contains(t, out, coordinator.SignalFeatureComplete+": absent")
	assert.Contains(t, out, "added (1):")
	assert.Contains(t, out, "new_test.go")
	assert.Contains(t, out, "modified (1):")
	assert.Contains(t, out, "deleted (1):")
	assert.Contains(t, out, "untracked (1):")
	assert.Contains(t, out, "Agent active: yes")
}

func TestMonitorProgress_NoWorktree(t *testing.T) {
	r, _, _, _ := newTestReporter(t)

	out, err := r.MonitorProgress(context.Background(), worktree.StageDocs, 0)
	require.NoError(t, err)
	assert.Contains(t, out, "No worktree provisioned")
}

func TestMonitorProgress_InvalidStage(t *testing.T) {
	r, _, _, _ := newTestReporter(t)
	_, err := r.MonitorProgress(context.Background(), worktree.Stage("prod"), 0)
	require.ErrorIs(t, err, worktree.ErrInvalidStage)
}

func TestMonitorProgress_CleanAndIdle(t *testing.T) {
	r, _, _, _ := newTestReporter(t, worktree.StageDocs)

	out, err := r.MonitorProgress(context.Background(), worktree.StageDocs, 0)
	require.NoError(t, err)
	assert.Contains(t, out, "clean")
	assert.Contains(t, out, "Agent active: no")
}

func TestParsePorcelain(t *testing.T) {
	cs := parsePorcelain("A  a.go\nM  b.go\n M c.go\nD  d.go\nR  e.go -> f.go\n?? g.txt\n")
	assert.Equal(t, []string{"a.go"}, cs.Added)
	assert.Len(t, cs.Modified, 3) // both modified forms plus the rename
	assert.Equal(t, []string{"d.go"}, cs.Deleted)
	assert.Equal(t, []string{"g.txt"}, cs.Untracked)
	assert.Equal(t, 6, cs.Total())
}
