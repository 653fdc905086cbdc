package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	mcpsrv "github.com/fyrsmithlabs/stagehand/internal/mcp"
	"github.com/fyrsmithlabs/stagehand/internal/report"
	"github.com/fyrsmithlabs/stagehand/internal/session"
)

var toolsCategory string

func init() {
	toolsCmd.Flags().StringVar(&toolsCategory, "category", "",
		"filter by category (worktree, agent, workflow)")
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools [query]",
	Short: "List or search the MCP tools this server exposes",
	Long: `List registered MCP tool metadata, optionally filtered by category
or matched against a search query.

Examples:
  stagehand tools
  stagehand tools --category agent
  stagehand tools merge`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	// Registration is metadata-only; no commands run here.
	host, err := session.NewTmuxHost(a.runner, a.cfg.Agent.TmuxTimeout.Duration())
	if err != nil {
		return err
	}
	supervisor, err := agent.NewSupervisor(agent.NewRegistry(a.cfg.Agent.RetentionLimit),
		host, a.manager, a.logger, agent.Options{})
	if err != nil {
		return err
	}
	defer supervisor.Close()

	reporter, err := report.NewReporter(a.manager, supervisor.Registry(), a.runner, a.logger, a.statusTimeout())
	if err != nil {
		return err
	}

	srv, err := mcpsrv.NewServer(&mcpsrv.Config{Name: "stagehand", Version: version, Logger: a.logger},
		a.manager, supervisor, reporter)
	if err != nil {
		return err
	}
	registry := srv.Registry()

	if len(args) == 1 {
		results := registry.Search(args[0])
		if len(results) == 0 {
			fmt.Printf("No tools match %q\n", args[0])
			return nil
		}
		for _, res := range results {
			fmt.Printf("%-20s [%s] %s\n", res.Tool.Name, res.Tool.Category, res.Tool.Description)
		}
		return nil
	}

	tools := registry.List()
	if toolsCategory != "" {
		tools = registry.ListByCategory(mcpsrv.ToolCategory(toolsCategory))
	}
	for _, t := range tools {
		fmt.Printf("%-20s [%s] %s\n", t.Name, t.Category, t.Description)
	}
	fmt.Printf("\n%d tool(s)\n", len(tools))
	return nil
}
