package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealRunner_Output(t *testing.T) {
	r := NewRealRunner()
	out, err := r.Output(context.Background(), t.TempDir(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRealRunner_RunFailureIncludesStderr(t *testing.T) {
	r := NewRealRunner()
	err := r.Run(context.Background(), t.TempDir(), "ls", "/definitely/not/a/path")
	require.Error(t, err)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "ls", cmdErr.Name)
	assert.NotEmpty(t, cmdErr.Stderr)
}

func TestMockRunner_PrefixMatch(t *testing.T) {
	m := NewMockRunner()
	m.AddPrefixMatch("git", []string{"worktree", "list"}, MockResponse{
		Stdout: []byte("worktree /repo\nbranch refs/heads/main\n"),
	})

	out, err := m.Output(context.Background(), "/repo", "git", "worktree", "list", "--porcelain")
	require.NoError(t, err)
	assert.Contains(t, string(out), "refs/heads/main")
}

func TestMockRunner_UnmatchedCommandSucceeds(t *testing.T) {
	m := NewMockRunner()
	err := m.Run(context.Background(), "/repo", "git", "worktree", "prune")
	require.NoError(t, err)
}

func TestMockRunner_RecordsCalls(t *testing.T) {
	m := NewMockRunner()
	m.AddPrefixMatch("git", []string{"status"}, MockResponse{Err: errors.New("boom")})

	_ = m.Run(context.Background(), "/wt", "git", "status", "--porcelain")
	_, _ = m.Output(context.Background(), "/wt", "tmux", "has-session", "-t", "x")

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "git", calls[0].Name)
	assert.Equal(t, "/wt", calls[0].Dir)

	gitCalls := m.CallsMatching("git", "status")
	require.Len(t, gitCalls, 1)
	assert.Equal(t, []string{"status", "--porcelain"}, gitCalls[0].Args)
}
