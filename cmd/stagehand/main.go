// Package main implements the stagehand CLI: a Git worktree orchestrator
// that provisions per-stage worktrees, spawns background agents in tmux
// sessions, and chains workflow stages through signal files.
//
// The long-running mode is `stagehand mcp`, which serves the orchestrator
// as an MCP server on stdio. The remaining commands are one-shot
// operations against the same services.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/config"
	pexec "github.com/fyrsmithlabs/stagehand/internal/exec"
	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/project"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// Version information (set via ldflags during build)
var version = "dev"

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Git worktree orchestrator for staged agent workflows",
	Long: `stagehand provisions Git worktrees for workflow stages (feature, test,
docs, bugfix), runs background agents in detached tmux sessions rooted
at those worktrees, and chains stages through signal files.

Run 'stagehand mcp' to serve the orchestrator over the Model Context
Protocol on stdio.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file path (default ~/.config/stagehand/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)")
}

// app bundles the services every command starts from.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	proj    *project.Context
	runner  pexec.Runner
	manager *worktree.Manager
}

// newApp loads configuration, builds the logger, resolves the project
// from the working directory, and wires the worktree manager.
func newApp() (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lcfg := logging.NewDefaultConfig()
	lcfg.Level = logging.ParseLevel(cfg.Logging.Level)
	lcfg.Format = cfg.Logging.Format
	if logLevel != "" {
		lcfg.Level = logging.ParseLevel(logLevel)
	}
	logger, err := logging.NewLogger(lcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	proj, err := project.Resolve(cwd)
	if err != nil {
		return nil, err
	}

	runner := pexec.NewRealRunner()
	manager, err := worktree.NewManager(runner, proj, logger, cfg.Git.Timeout.Duration())
	if err != nil {
		return nil, err
	}

	logger.Debug("project resolved",
		zap.String("repo", proj.RepoRoot),
		zap.String("project", proj.Name),
		zap.String("worktrees", proj.WorktreesRoot))

	return &app{
		cfg:     cfg,
		logger:  logger,
		proj:    proj,
		runner:  runner,
		manager: manager,
	}, nil
}

func (a *app) statusTimeout() time.Duration {
	return a.cfg.Git.StatusTimeout.Duration()
}
