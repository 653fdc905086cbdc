package worktree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrWorktreeMissing indicates an integration source worktree that has
// not been provisioned.
var ErrWorktreeMissing = errors.New("worktree does not exist")

// Integrate merges the source stage's current branch into targetBranch
// in the main repository. Merge conflicts surface as an error carrying
// git's message; they are never auto-resolved. A failed push after a
// successful local merge is logged, not returned: local state is valid.
func (m *Manager) Integrate(ctx context.Context, source Stage, targetBranch string) (string, error) {
	if _, err := ParseStage(string(source)); err != nil {
		return "", err
	}
	if targetBranch == "" {
		targetBranch = "main"
	}
	if !m.Exists(source) {
		return "", fmt.Errorf("%w: %s", ErrWorktreeMissing, m.Path(source))
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// The branch actually checked out in the worktree, not the derived
	// name: a human may have switched it.
	out, err := m.runner.Output(cctx, m.Path(source), "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s worktree branch: %w", source, err)
	}
	sourceBranch := strings.TrimSpace(string(out))
	if sourceBranch == "" || sourceBranch == "HEAD" {
		return "", fmt.Errorf("%s worktree is not on a branch", source)
	}

	if co, err := m.runner.CombinedOutput(cctx, m.proj.RepoRoot, "git", "checkout", targetBranch); err != nil {
		return "", fmt.Errorf("failed to checkout %s: %w: %s", targetBranch, err, strings.TrimSpace(string(co)))
	}

	mergeOut, err := m.runner.CombinedOutput(cctx, m.proj.RepoRoot,
		"git", "merge", "--no-ff", sourceBranch, "-m",
		fmt.Sprintf("Merge %s into %s", sourceBranch, targetBranch))
	if err != nil {
		return "", fmt.Errorf("merge of %s into %s failed: %w: %s",
			sourceBranch, targetBranch, err, strings.TrimSpace(string(mergeOut)))
	}

	if err := m.runner.Run(cctx, m.proj.RepoRoot, "git", "push", "origin", targetBranch); err != nil {
		m.logger.Warn("push after merge failed; local merge is intact",
			zap.String("branch", targetBranch), zap.Error(err))
	}

	m.logger.Info("integrated changes",
		zap.String("source", string(source)),
		zap.String("source_branch", sourceBranch),
		zap.String("target", targetBranch))

	return fmt.Sprintf("Merged %s into %s", sourceBranch, targetBranch), nil
}
