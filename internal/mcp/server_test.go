package mcp

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	pexec "github.com/fyrsmithlabs/stagehand/internal/exec"
	"github.com/fyrsmithlabs/stagehand/internal/project"
	"github.com/fyrsmithlabs/stagehand/internal/report"
	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	runner := pexec.NewMockRunner()
	root := t.TempDir()
	proj := &project.Context{
		RepoRoot:      filepath.Join(root, "repo"),
		Name:          "demo",
		WorktreesRoot: filepath.Join(root, "demo-worktrees"),
	}

	manager, err := worktree.NewManager(runner, proj, zap.NewNop(), time.Second)
	require.NoError(t, err)

	host, err := session.NewTmuxHost(runner, time.Second)
	require.NoError(t, err)

	supervisor, err := agent.NewSupervisor(agent.NewRegistry(100), host, manager, zap.NewNop(), agent.Options{})
	require.NoError(t, err)
	t.Cleanup(supervisor.Close)

	reporter, err := report.NewReporter(manager, supervisor.Registry(), runner, zap.NewNop(), time.Second)
	require.NoError(t, err)

	srv, err := NewServer(DefaultConfig(), manager, supervisor, reporter)
	require.NoError(t, err)
	return srv
}

func TestNewServer_Validation(t *testing.T) {
	srv := newTestServer(t)

	_, err := NewServer(nil, nil, srv.supervisor, srv.reporter)
	assert.ErrorContains(t, err, "worktree manager")

	_, err = NewServer(nil, srv.manager, nil, srv.reporter)
	assert.ErrorContains(t, err, "agent supervisor")

	_, err = NewServer(nil, srv.manager, srv.supervisor, nil)
	assert.ErrorContains(t, err, "reporter")
}

func TestNewServer_RegistersAllTools(t *testing.T) {
	srv := newTestServer(t)

	expected := []string{
		"worktree_create",
		"worktree_status",
		"worktree_monitor",
		"agent_spawn",
		"agent_status",
		"agent_logs",
		"agent_kill",
		"changes_integrate",
	}
	assert.Equal(t, len(expected), srv.Registry().Count())
	for _, name := range expected {
		_, ok := srv.Registry().Get(name)
		assert.True(t, ok, "missing tool metadata: %s", name)
	}
}

func TestRegistry_Categories(t *testing.T) {
	srv := newTestServer(t)

	agents := srv.Registry().ListByCategory(CategoryAgent)
	assert.Len(t, agents, 4)

	workflow := srv.Registry().ListByCategory(CategoryWorkflow)
	assert.Len(t, workflow, 3)

	wts := srv.Registry().ListByCategory(CategoryWorktree)
	assert.Len(t, wts, 1)
}

func TestClose(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Close())
}
