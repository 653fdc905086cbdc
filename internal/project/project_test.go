package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a git repository with one commit and returns its path.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("demo\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir
}

func TestResolve_NotARepository(t *testing.T) {
	_, err := Resolve(t.TempDir())
	require.ErrorIs(t, err, ErrNotARepository)
}

func TestResolve_DerivesNameFromDirectory(t *testing.T) {
	dir := initRepo(t)

	ctx, err := Resolve(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, ctx.RepoRoot)
	assert.Equal(t, filepath.Base(dir), ctx.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), ctx.Name+"-worktrees"), ctx.WorktreesRoot)
}

func TestResolve_ReadsProjectFile(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ProjectFileName),
		[]byte(`{"projectName": "demo"}`), 0644))

	ctx, err := Resolve(dir)
	require.NoError(t, err)

	assert.Equal(t, "demo", ctx.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "demo-worktrees"), ctx.WorktreesRoot)
}

func TestResolve_MalformedProjectFileFallsBack(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ProjectFileName),
		[]byte("{not json"), 0644))

	ctx, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), ctx.Name)
}

func TestResolve_FromSubdirectory(t *testing.T) {
	dir := initRepo(t)
	sub := filepath.Join(dir, "internal", "deep")
	require.NoError(t, os.MkdirAll(sub, 0755))

	ctx, err := Resolve(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, ctx.RepoRoot)
}

func TestCurrentBranch(t *testing.T) {
	dir := initRepo(t)

	ctx, err := Resolve(dir)
	require.NoError(t, err)

	branch, err := ctx.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}
