// Package project resolves the repository root and project identity that
// anchor all worktree paths. The context is derived once at startup and
// treated as immutable for the process lifetime.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// ProjectFileName is the per-repository settings document at the repo root.
const ProjectFileName = ".stagehand.json"

// ErrNotARepository indicates the starting directory is not inside a git
// repository. This is fatal at startup; nothing works without a repo.
var ErrNotARepository = errors.New("not a git repository")

// Context holds the resolved repository root and project identity.
type Context struct {
	// RepoRoot is the absolute path of the main repository worktree.
	RepoRoot string

	// Name is the project name from .stagehand.json, falling back to the
	// repository directory name.
	Name string

	// WorktreesRoot is where stage worktrees live:
	// <RepoRoot>/../<Name>-worktrees.
	WorktreesRoot string
}

// projectFile mirrors the .stagehand.json document.
type projectFile struct {
	ProjectName string `json:"projectName"`
}

// Resolve locates the repository containing startDir and derives the
// project context. The project name comes from .stagehand.json when
// present, otherwise from the repository directory name.
func Resolve(startDir string) (*Context, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, abs)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: bare repository at %s", ErrNotARepository, abs)
	}
	root := wt.Filesystem.Root()

	name := strings.TrimSpace(readProjectName(root))
	if name == "" {
		name = filepath.Base(root)
	}

	return &Context{
		RepoRoot:      root,
		Name:          name,
		WorktreesRoot: filepath.Join(filepath.Dir(root), name+"-worktrees"),
	}, nil
}

// CurrentBranch returns the branch checked out in the repository's main
// worktree, or empty when HEAD is detached.
func (c *Context) CurrentBranch() (string, error) {
	repo, err := git.PlainOpen(c.RepoRoot)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "", nil
}

// readProjectName reads the projectName field from .stagehand.json.
// Missing or malformed files yield empty (the directory-name fallback
// applies); the file is never written by stagehand itself.
func readProjectName(root string) string {
	data, err := os.ReadFile(filepath.Join(root, ProjectFileName))
	if err != nil {
		return ""
	}
	var pf projectFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return ""
	}
	return pf.ProjectName
}
