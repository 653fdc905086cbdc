package coordinator

import (
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// Signal file names, one per stage. Presence is the only state; no
// payload is trusted beyond existence.
const (
	SignalFeatureComplete = ".claude-complete"
	SignalTestsComplete   = ".tests-complete"
	SignalBugfixComplete  = ".bugfix-complete"
	SignalDocsComplete    = ".docs-complete"
)

// signalFiles maps each stage to the marker its agents create.
var signalFiles = map[worktree.Stage]string{
	worktree.StageFeature: SignalFeatureComplete,
	worktree.StageTest:    SignalTestsComplete,
	worktree.StageBugfix:  SignalBugfixComplete,
	worktree.StageDocs:    SignalDocsComplete,
}

// SignalFile returns the marker file name for a stage.
func SignalFile(stage worktree.Stage) string {
	return signalFiles[stage]
}

// AllSignalFiles returns every known marker file name.
func AllSignalFiles() []string {
	return []string{
		SignalFeatureComplete,
		SignalTestsComplete,
		SignalBugfixComplete,
		SignalDocsComplete,
	}
}

// Transition describes the next stage spawned when a stage's signal
// file is consumed.
type Transition struct {
	// Target is the stage whose worktree hosts the next agent.
	Target worktree.Stage

	// Task describes the spawned agent's work.
	Task string

	// Command is run in the target worktree's session.
	Command string
}

// chain is the fixed stage dependency graph. Docs is terminal: its
// signal file is reported but consumed by nothing.
var chain = map[worktree.Stage]Transition{
	worktree.StageFeature: {
		Target:  worktree.StageTest,
		Task:    "Run test suite against completed feature work",
		Command: "npm test && touch " + SignalTestsComplete,
	},
	worktree.StageTest: {
		Target:  worktree.StageDocs,
		Task:    "Update documentation for tested changes",
		Command: `echo "Documentation update needed" > .docs-needed`,
	},
	worktree.StageBugfix: {
		Target:  worktree.StageTest,
		Task:    "Re-validate test suite after bugfix",
		Command: "npm test && touch .bugfix-validated",
	},
}

// TransitionFor returns the chain entry for a stage, if any.
func TransitionFor(stage worktree.Stage) (Transition, bool) {
	t, ok := chain[stage]
	return t, ok
}
