package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	"github.com/fyrsmithlabs/stagehand/internal/coordinator"
	mcpsrv "github.com/fyrsmithlabs/stagehand/internal/mcp"
	"github.com/fyrsmithlabs/stagehand/internal/report"
	"github.com/fyrsmithlabs/stagehand/internal/session"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the orchestrator as an MCP server on stdio",
	Long: `Serve worktree, agent, and workflow tools over the Model Context
Protocol on stdio. The signal-file coordinator runs alongside the
server, chaining stages both on agent completion and on a periodic
scan of all worktrees.

Logs go to stderr; stdout carries the protocol stream.

Examples:
  # Serve from inside a repository
  stagehand mcp

  # With verbose logging
  stagehand mcp --log-level debug`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck // stderr sync failure is benign

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, err := session.NewTmuxHost(a.runner, a.cfg.Agent.TmuxTimeout.Duration())
	if err != nil {
		return err
	}

	registry := agent.NewRegistry(a.cfg.Agent.RetentionLimit)
	supervisor, err := agent.NewSupervisor(registry, host, a.manager, a.logger, agent.Options{
		PollInterval:  a.cfg.Agent.PollInterval.Duration(),
		SessionPrefix: a.cfg.Agent.SessionPrefix,
	})
	if err != nil {
		return err
	}
	defer supervisor.Close()

	coord, err := coordinator.NewCoordinator(supervisor, a.manager, a.logger, coordinator.Options{
		ScanInterval: a.cfg.Coordinator.ScanInterval.Duration(),
		WatchEnabled: a.cfg.Coordinator.WatchEnabled,
	})
	if err != nil {
		return err
	}
	supervisor.OnAgentComplete(coord.OnAgentComplete)

	go func() {
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("coordinator stopped", zap.Error(err))
		}
	}()

	reporter, err := report.NewReporter(a.manager, registry, a.runner, a.logger, a.statusTimeout())
	if err != nil {
		return err
	}

	srv, err := mcpsrv.NewServer(&mcpsrv.Config{
		Name:    "stagehand",
		Version: version,
		Logger:  a.logger,
	}, a.manager, supervisor, reporter)
	if err != nil {
		return err
	}
	defer srv.Close() //nolint:errcheck // close only stops watchers

	a.logger.Info("stagehand MCP server starting",
		zap.String("project", a.proj.Name),
		zap.String("worktrees", a.proj.WorktreesRoot))

	err = srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
