package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	"github.com/fyrsmithlabs/stagehand/internal/report"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// Server exposes the orchestrator's services as MCP tools on stdio.
type Server struct {
	mcp          *mcp.Server
	manager      *worktree.Manager
	supervisor   *agent.Supervisor
	reporter     *report.Reporter
	toolRegistry *ToolRegistry
	metrics      *Metrics
	logger       *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "stagehand").
	Name string

	// Version is the server version (default: "1.0.0").
	Version string

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "stagehand",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server over the given services.
func NewServer(cfg *Config, manager *worktree.Manager, supervisor *agent.Supervisor, reporter *report.Reporter) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if manager == nil {
		return nil, fmt.Errorf("worktree manager is required")
	}
	if supervisor == nil {
		return nil, fmt.Errorf("agent supervisor is required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("reporter is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:          mcpServer,
		manager:      manager,
		supervisor:   supervisor,
		reporter:     reporter,
		toolRegistry: NewToolRegistry(),
		metrics:      NewMetrics(cfg.Logger),
		logger:       cfg.Logger,
	}

	s.registerTools()
	return s, nil
}

// Registry exposes tool metadata for discovery.
func (s *Server) Registry() *ToolRegistry {
	return s.toolRegistry
}

// Run starts the MCP server on the stdio transport and blocks until the
// client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport",
		zap.Int("tools", s.toolRegistry.Count()))
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close stops the supervisor's liveness watchers.
func (s *Server) Close() error {
	s.logger.Info("closing MCP server")
	s.supervisor.Close()
	return nil
}
