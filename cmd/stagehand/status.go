package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	"github.com/fyrsmithlabs/stagehand/internal/report"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

var monitorSince int

func init() {
	monitorCmd.Flags().IntVar(&monitorSince, "since", 60,
		"window in minutes for flagging recent signal activity")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worktrees, signal files, and pending changes",
	Long: `Render the combined orchestration snapshot: worktree inventory,
per-stage signal files, and pending-change counts.

Agent records live in the MCP server process; a one-shot CLI run shows
none. Query agents through the agent_status tool instead.

Examples:
  stagehand status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor <stage>",
	Short: "Show one stage's signals and categorized pending changes",
	Long: `Render a focused snapshot of one stage: signal files with
timestamps, pending changes categorized as added/modified/deleted/
untracked, and agent activity.

Examples:
  stagehand monitor feature
  stagehand monitor test --since 15`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

// newCLIReporter builds a reporter over an empty registry: agent state
// is owned by the MCP server process, not one-shot CLI invocations.
func newCLIReporter(a *app) (*report.Reporter, error) {
	return report.NewReporter(a.manager, agent.NewRegistry(a.cfg.Agent.RetentionLimit),
		a.runner, a.logger, a.statusTimeout())
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	reporter, err := newCLIReporter(a)
	if err != nil {
		return err
	}
	text, err := reporter.WorktreeStatus(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	stage, err := worktree.ParseStage(args[0])
	if err != nil {
		return err
	}
	reporter, err := newCLIReporter(a)
	if err != nil {
		return err
	}
	text, err := reporter.MonitorProgress(cmd.Context(), stage, time.Duration(monitorSince)*time.Minute)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}
