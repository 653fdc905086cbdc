package agent

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// fakeHost is an in-memory session.Host.
type fakeHost struct {
	mu       sync.Mutex
	alive    map[string]bool
	startErr error
	pid      int
	captured string
	kills    []string
}

func newFakeHost() *fakeHost {
	// A pid far beyond pid_max so kill-path signals hit nothing real.
	return &fakeHost{alive: make(map[string]bool), pid: 1 << 30, captured: "line1\nline2"}
}

func (f *fakeHost) Start(ctx context.Context, name, dir, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.alive[name] = true
	return nil
}

func (f *fakeHost) PanePID(ctx context.Context, name string) (int, error) {
	return f.pid, nil
}

func (f *fakeHost) Alive(ctx context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[name]
}

func (f *fakeHost) Capture(ctx context.Context, name string, lines int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[name] {
		return "", session.ErrSessionNotFound
	}
	return f.captured, nil
}

func (f *fakeHost) Kill(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, name)
	if !f.alive[name] {
		return errors.New("no such session")
	}
	delete(f.alive, name)
	return nil
}

func (f *fakeHost) end(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, name)
}

// fakeWorktrees is an in-memory WorktreeChecker.
type fakeWorktrees struct {
	existing map[worktree.Stage]bool
	root     string
}

func (f *fakeWorktrees) Exists(stage worktree.Stage) bool {
	return f.existing[stage]
}

func (f *fakeWorktrees) Path(stage worktree.Stage) string {
	return filepath.Join(f.root, string(stage))
}

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeHost, *fakeWorktrees) {
	t.Helper()
	host := newFakeHost()
	wts := &fakeWorktrees{
		existing: map[worktree.Stage]bool{worktree.StageFeature: true, worktree.StageTest: true},
		root:     t.TempDir(),
	}
	sup, err := NewSupervisor(NewRegistry(100), host, wts, zap.NewNop(), Options{
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(sup.Close)
	return sup, host, wts
}

var agentIDRe = regexp.MustCompile(`^agent-\d+-[a-z0-9]+$`)

func TestSpawn_Success(t *testing.T) {
	sup, host, wts := newTestSupervisor(t)

	a, err := sup.Spawn(context.Background(), worktree.StageFeature, "build login", "make build")
	require.NoError(t, err)

	assert.Regexp(t, agentIDRe, a.ID)
	assert.Equal(t, worktree.StageFeature, a.Stage)
	assert.Equal(t, StatusRunning, a.Status)
	assert.Equal(t, 1<<30, a.PID)
	assert.True(t, host.Alive(context.Background(), a.SessionName))
	assert.Equal(t, wts.Path(worktree.StageFeature), filepath.Join(wts.root, "feature"))
}

func TestSpawn_MissingWorktree(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)

	_, err := sup.Spawn(context.Background(), worktree.StageDocs, "write docs", "make docs")
	require.ErrorIs(t, err, ErrWorktreeNotFound)
	assert.Empty(t, sup.Status(""), "failed spawn must not register a record")
}

func TestSpawn_InvalidStage(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	_, err := sup.Spawn(context.Background(), worktree.Stage("prod"), "x", "y")
	require.ErrorIs(t, err, worktree.ErrInvalidStage)
}

func TestSpawn_HostFailure(t *testing.T) {
	sup, host, _ := newTestSupervisor(t)
	host.startErr = errors.New("tmux not installed")

	_, err := sup.Spawn(context.Background(), worktree.StageFeature, "x", "y")
	require.Error(t, err)
	assert.Empty(t, sup.Status(""))
}

func TestLivenessDetection_CompletesAndFiresHook(t *testing.T) {
	sup, host, _ := newTestSupervisor(t)

	completed := make(chan worktree.Stage, 1)
	sup.OnAgentComplete(func(stage worktree.Stage) {
		completed <- stage
	})

	a, err := sup.Spawn(context.Background(), worktree.StageFeature, "x", "y")
	require.NoError(t, err)

	host.end(a.SessionName)

	select {
	case stage := <-completed:
		assert.Equal(t, worktree.StageFeature, stage)
	case <-time.After(2 * time.Second):
		t.Fatal("completion hook never fired")
	}

	got := sup.Status(a.ID)
	require.Len(t, got, 1)
	assert.Equal(t, StatusCompleted, got[0].Status)
	assert.NotNil(t, got[0].CompletedAt)
}

func TestKill_MarksFailedEvenIfAlreadyExited(t *testing.T) {
	sup, host, _ := newTestSupervisor(t)

	a, err := sup.Spawn(context.Background(), worktree.StageFeature, "x", "sleep 100")
	require.NoError(t, err)

	// Session already gone; host.Kill will error.
	host.end(a.SessionName)

	require.NoError(t, sup.Kill(context.Background(), a.ID))

	got := sup.Status(a.ID)
	require.Len(t, got, 1)
	assert.Equal(t, StatusFailed, got[0].Status)
	assert.NotNil(t, got[0].CompletedAt)
	assert.Contains(t, host.kills, a.SessionName)
}

func TestKill_StaysFailedAfterPoll(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)

	a, err := sup.Spawn(context.Background(), worktree.StageFeature, "x", "y")
	require.NoError(t, err)
	require.NoError(t, sup.Kill(context.Background(), a.ID))

	// Give pollers time to observe the dead session; failed must not
	// be downgraded to completed.
	time.Sleep(50 * time.Millisecond)
	got := sup.Status(a.ID)
	require.Len(t, got, 1)
	assert.Equal(t, StatusFailed, got[0].Status)
}

func TestKill_UnknownAgent(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	err := sup.Kill(context.Background(), "agent-0-nope")
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestStatus(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)

	a1, err := sup.Spawn(context.Background(), worktree.StageFeature, "one", "cmd")
	require.NoError(t, err)
	_, err = sup.Spawn(context.Background(), worktree.StageTest, "two", "cmd")
	require.NoError(t, err)

	assert.Len(t, sup.Status(""), 2)
	assert.Len(t, sup.Status(a1.ID), 1)
	assert.Empty(t, sup.Status("agent-0-unknown"))
}

func TestLogs(t *testing.T) {
	sup, host, _ := newTestSupervisor(t)

	a, err := sup.Spawn(context.Background(), worktree.StageFeature, "x", "y")
	require.NoError(t, err)

	out, err := sup.Logs(context.Background(), a.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", out)

	// Ended session degrades to a placeholder, not an error.
	host.end(a.SessionName)
	out, err = sup.Logs(context.Background(), a.ID, 50)
	require.NoError(t, err)
	assert.Contains(t, out, "no longer available")

	_, err = sup.Logs(context.Background(), "agent-0-nope", 50)
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestLogs_NoSessionHandle(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	sup.Registry().Add(&Agent{ID: "agent-1-bare", Status: StatusRunning, StartedAt: time.Now()})

	out, err := sup.Logs(context.Background(), "agent-1-bare", 10)
	require.NoError(t, err)
	assert.Contains(t, out, "no session attached")
}

func TestClose_StopsWatchers(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	_, err := sup.Spawn(context.Background(), worktree.StageFeature, "x", "y")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sup.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	// Idempotent.
	sup.Close()
}
