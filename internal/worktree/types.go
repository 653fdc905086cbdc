package worktree

import (
	"errors"
	"fmt"
)

// Stage identifies a workflow stage. Each stage owns at most one
// worktree under the worktrees root.
type Stage string

const (
	// StageFeature is where new feature work happens.
	StageFeature Stage = "feature"
	// StageTest runs the test suite against completed feature work.
	StageTest Stage = "test"
	// StageDocs updates documentation after tests pass.
	StageDocs Stage = "docs"
	// StageBugfix is where bug fixes happen before re-validation.
	StageBugfix Stage = "bugfix"
)

// AllStages lists every stage in chain order.
func AllStages() []Stage {
	return []Stage{StageFeature, StageTest, StageDocs, StageBugfix}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageFeature, StageTest, StageDocs, StageBugfix:
		return Stage(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected feature, test, docs, or bugfix)", ErrInvalidStage, s)
	}
}

// Branch returns the branch name derived from stage and project name.
// Branch and path always derive from the same two inputs so they cannot
// desynchronize except through manual git intervention.
func (s Stage) Branch(name string) string {
	return string(s) + "/" + name
}

// Descriptor describes a provisioned worktree.
type Descriptor struct {
	Stage  Stage  `json:"stage"`
	Path   string `json:"path"`
	Branch string `json:"branch"`
}

// Entry is one row of `git worktree list --porcelain`.
type Entry struct {
	Path   string
	Head   string
	Branch string
}

var (
	// ErrInvalidStage indicates a stage name outside the enumerated set.
	ErrInvalidStage = errors.New("invalid worktree stage")

	// ErrInvalidName indicates a feature/project name that failed
	// defensive validation.
	ErrInvalidName = errors.New("invalid feature name")

	// ErrCreationFailed indicates the worktree did not appear in the
	// worktree listing after creation.
	ErrCreationFailed = errors.New("worktree creation failed")
)
