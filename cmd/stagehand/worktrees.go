package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

var createStage string

func init() {
	createCmd.Flags().StringVar(&createStage, "stage", "",
		"single stage to create (feature, test, docs, bugfix); omit for all four")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(integrateCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create stage worktrees on branches {stage}/<name>",
	Long: `Create Git worktrees for workflow stages. Without --stage, all four
stages are provisioned; a per-stage failure does not abort the rest.

Each worktree gets a launch-agent.sh helper recording its stage,
feature name, and branch.

Examples:
  # All four stages for a feature
  stagehand create login-flow

  # Only the feature worktree
  stagehand create login-flow --stage feature`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove all stage worktrees and prune their registrations",
	Long: `Delete the worktrees root directory and prune stale worktree
registrations from the repository. Branches are left in place.

Examples:
  stagehand cleanup`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var integrateTarget string

var integrateCmd = &cobra.Command{
	Use:   "integrate <stage>",
	Short: "Merge a stage worktree's branch into the target branch",
	Long: `Check out the target branch in the main repository and merge the
stage worktree's current branch into it with a merge commit. Conflicts
surface as errors and are never auto-resolved.

Examples:
  stagehand integrate feature
  stagehand integrate test --target release/2.0`,
	Args: cobra.ExactArgs(1),
	RunE: runIntegrate,
}

func init() {
	integrateCmd.Flags().StringVar(&integrateTarget, "target", "main", "branch to merge into")
}

func runCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	name := args[0]

	if createStage != "" {
		stage, err := worktree.ParseStage(createStage)
		if err != nil {
			return err
		}
		desc, err := a.manager.Create(cmd.Context(), stage, name)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s worktree at %s on branch %s\n", desc.Stage, desc.Path, desc.Branch)
		return nil
	}

	descs, err := a.manager.CreateAll(cmd.Context(), name)
	for _, d := range descs {
		fmt.Printf("Created %s worktree at %s on branch %s\n", d.Stage, d.Path, d.Branch)
	}
	return err
}

func runCleanup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.manager.RemoveAll(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Removed worktrees under %s\n", a.proj.WorktreesRoot)
	return nil
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	stage, err := worktree.ParseStage(args[0])
	if err != nil {
		return err
	}
	msg, err := a.manager.Integrate(cmd.Context(), stage, integrateTarget)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}
