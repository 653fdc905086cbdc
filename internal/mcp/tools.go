package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/stagehand/internal/agent"
	"github.com/fyrsmithlabs/stagehand/internal/worktree"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerWorktreeTools()
	s.registerAgentTools()
	s.registerWorkflowTools()
}

// instrument wraps a handler body with the standard metrics pattern.
// The returned done func must be called with the handler's error.
func (s *Server) instrument(ctx context.Context, toolName string) func(error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, toolName)
	return func(err error) {
		s.metrics.DecrementActive(ctx, toolName)
		s.metrics.RecordInvocation(ctx, toolName, time.Since(start), err)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ===== WORKTREE TOOLS =====

type worktreeCreateInput struct {
	Stage string `json:"stage" jsonschema:"required,Workflow stage: feature test docs or bugfix"`
	Name  string `json:"name" jsonschema:"required,Feature name used in the branch: {stage}/{name}"`
}

type worktreeCreateOutput struct {
	Stage  string `json:"stage" jsonschema:"Workflow stage"`
	Path   string `json:"path" jsonschema:"Worktree directory path"`
	Branch string `json:"branch" jsonschema:"Branch checked out in the worktree"`
}

type worktreeStatusInput struct{}

type worktreeStatusOutput struct {
	Report string `json:"report" jsonschema:"Combined worktree agent signal and pending-change snapshot"`
}

type worktreeMonitorInput struct {
	Stage        string `json:"stage" jsonschema:"required,Workflow stage to monitor"`
	SinceMinutes int    `json:"since_minutes,omitempty" jsonschema:"Window for flagging recent signal activity (default: 60)"`
}

type worktreeMonitorOutput struct {
	Report string `json:"report" jsonschema:"Stage progress snapshot"`
}

func (s *Server) registerWorktreeTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "worktree_create",
		Description: "Create (or recreate) a Git worktree for a workflow stage on branch {stage}/{name}",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args worktreeCreateInput) (*mcp.CallToolResult, worktreeCreateOutput, error) {
		done := s.instrument(ctx, "worktree_create")
		var toolErr error
		defer func() { done(toolErr) }()

		stage, err := worktree.ParseStage(args.Stage)
		if err != nil {
			toolErr = err
			return nil, worktreeCreateOutput{}, err
		}

		desc, err := s.manager.Create(ctx, stage, args.Name)
		if err != nil {
			toolErr = fmt.Errorf("worktree create failed: %w", err)
			return nil, worktreeCreateOutput{}, toolErr
		}

		out := worktreeCreateOutput{
			Stage:  string(desc.Stage),
			Path:   desc.Path,
			Branch: desc.Branch,
		}
		return textResult(fmt.Sprintf("Created %s worktree at %s on branch %s", out.Stage, out.Path, out.Branch)), out, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "worktree_create",
		Description: "Create a Git worktree for a workflow stage",
		Category:    CategoryWorktree,
		Keywords:    []string{"git", "branch", "provision", "stage"},
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "worktree_status",
		Description: "Report worktree inventory, agent counts, signal files, and pending changes across all stages",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args worktreeStatusInput) (*mcp.CallToolResult, worktreeStatusOutput, error) {
		done := s.instrument(ctx, "worktree_status")
		var toolErr error
		defer func() { done(toolErr) }()

		text, err := s.reporter.WorktreeStatus(ctx)
		if err != nil {
			toolErr = fmt.Errorf("status report failed: %w", err)
			return nil, worktreeStatusOutput{}, toolErr
		}
		return textResult(text), worktreeStatusOutput{Report: text}, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "worktree_status",
		Description: "Combined snapshot of worktrees, agents, signals, and pending changes",
		Category:    CategoryWorkflow,
		Keywords:    []string{"status", "report", "overview"},
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "worktree_monitor",
		Description: "Monitor one stage's progress: signal files with timestamps, categorized pending changes, agent activity",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args worktreeMonitorInput) (*mcp.CallToolResult, worktreeMonitorOutput, error) {
		done := s.instrument(ctx, "worktree_monitor")
		var toolErr error
		defer func() { done(toolErr) }()

		since := time.Duration(args.SinceMinutes) * time.Minute
		if since <= 0 {
			since = time.Hour
		}
		text, err := s.reporter.MonitorProgress(ctx, worktree.Stage(args.Stage), since)
		if err != nil {
			toolErr = fmt.Errorf("monitor failed: %w", err)
			return nil, worktreeMonitorOutput{}, toolErr
		}
		return textResult(text), worktreeMonitorOutput{Report: text}, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "worktree_monitor",
		Description: "Per-stage progress snapshot with signal timestamps and change categories",
		Category:    CategoryWorkflow,
		Keywords:    []string{"monitor", "progress", "signals", "diff"},
	})
}

// ===== AGENT TOOLS =====

type agentSpawnInput struct {
	Stage   string `json:"stage" jsonschema:"required,Stage whose worktree hosts the agent"`
	Task    string `json:"task" jsonschema:"required,Description of the agent's work"`
	Command string `json:"command" jsonschema:"required,Command to run in the detached session"`
}

type agentSpawnOutput struct {
	AgentID string `json:"agent_id" jsonschema:"Unique agent identifier"`
	Stage   string `json:"stage" jsonschema:"Stage the agent runs in"`
	Session string `json:"session" jsonschema:"Session name in the host"`
	PID     int    `json:"pid,omitempty" jsonschema:"Pane process id when resolved"`
}

type agentStatusInput struct {
	AgentID string `json:"agent_id,omitempty" jsonschema:"Agent to query; omit for all agents"`
}

type agentRecord struct {
	ID          string `json:"id" jsonschema:"Agent identifier"`
	Stage       string `json:"stage" jsonschema:"Stage the agent runs in"`
	Task        string `json:"task" jsonschema:"Task description"`
	Status      string `json:"status" jsonschema:"running completed or failed"`
	PID         int    `json:"pid,omitempty" jsonschema:"Pane process id"`
	Session     string `json:"session,omitempty" jsonschema:"Session name"`
	Runtime     string `json:"runtime" jsonschema:"Elapsed runtime"`
	StartedAt   string `json:"started_at" jsonschema:"Start timestamp RFC3339"`
	CompletedAt string `json:"completed_at,omitempty" jsonschema:"Completion timestamp RFC3339"`
}

type agentStatusOutput struct {
	Agents []agentRecord `json:"agents" jsonschema:"Matching agent records"`
	Count  int           `json:"count" jsonschema:"Number of records returned"`
}

type agentLogsInput struct {
	AgentID string `json:"agent_id" jsonschema:"required,Agent whose session output to capture"`
	Lines   int    `json:"lines,omitempty" jsonschema:"Trailing lines to capture (default: 50)"`
}

type agentLogsOutput struct {
	AgentID string `json:"agent_id" jsonschema:"Agent identifier"`
	Logs    string `json:"logs" jsonschema:"Captured session output"`
}

type agentKillInput struct {
	AgentID string `json:"agent_id" jsonschema:"required,Agent to terminate"`
}

type agentKillOutput struct {
	AgentID string `json:"agent_id" jsonschema:"Agent identifier"`
	Status  string `json:"status" jsonschema:"Agent status after termination"`
}

func (s *Server) registerAgentTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "agent_spawn",
		Description: "Spawn a background agent running a command in a stage's worktree",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args agentSpawnInput) (*mcp.CallToolResult, agentSpawnOutput, error) {
		done := s.instrument(ctx, "agent_spawn")
		var toolErr error
		defer func() { done(toolErr) }()

		a, err := s.supervisor.Spawn(ctx, worktree.Stage(args.Stage), args.Task, args.Command)
		if err != nil {
			toolErr = fmt.Errorf("agent spawn failed: %w", err)
			return nil, agentSpawnOutput{}, toolErr
		}

		out := agentSpawnOutput{
			AgentID: a.ID,
			Stage:   string(a.Stage),
			Session: a.SessionName,
			PID:     a.PID,
		}
		return textResult(fmt.Sprintf("Spawned agent %s in %s worktree (session %s)", a.ID, a.Stage, a.SessionName)), out, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "agent_spawn",
		Description: "Spawn a background agent in a stage worktree",
		Category:    CategoryAgent,
		Keywords:    []string{"spawn", "run", "session", "tmux"},
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "agent_status",
		Description: "Query one agent's record, or all agents when no id is given",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args agentStatusInput) (*mcp.CallToolResult, agentStatusOutput, error) {
		done := s.instrument(ctx, "agent_status")
		defer func() { done(nil) }()

		agents := s.supervisor.Status(args.AgentID)
		out := agentStatusOutput{Agents: make([]agentRecord, 0, len(agents)), Count: len(agents)}
		for i := range agents {
			out.Agents = append(out.Agents, toRecord(&agents[i]))
		}
		return textResult(fmt.Sprintf("%d agent(s)", out.Count)), out, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "agent_status",
		Description: "Query agent lifecycle records",
		Category:    CategoryAgent,
		Keywords:    []string{"status", "running", "list"},
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "agent_logs",
		Description: "Capture the trailing output of an agent's session",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args agentLogsInput) (*mcp.CallToolResult, agentLogsOutput, error) {
		done := s.instrument(ctx, "agent_logs")
		var toolErr error
		defer func() { done(toolErr) }()

		logs, err := s.supervisor.Logs(ctx, args.AgentID, args.Lines)
		if err != nil {
			toolErr = fmt.Errorf("log capture failed: %w", err)
			return nil, agentLogsOutput{}, toolErr
		}
		return textResult(logs), agentLogsOutput{AgentID: args.AgentID, Logs: logs}, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "agent_logs",
		Description: "Capture trailing session output for an agent",
		Category:    CategoryAgent,
		Keywords:    []string{"logs", "output", "capture"},
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "agent_kill",
		Description: "Terminate an agent's session and mark its record failed",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args agentKillInput) (*mcp.CallToolResult, agentKillOutput, error) {
		done := s.instrument(ctx, "agent_kill")
		var toolErr error
		defer func() { done(toolErr) }()

		if err := s.supervisor.Kill(ctx, args.AgentID); err != nil {
			toolErr = fmt.Errorf("agent kill failed: %w", err)
			return nil, agentKillOutput{}, toolErr
		}
		out := agentKillOutput{AgentID: args.AgentID, Status: string(agent.StatusFailed)}
		return textResult(fmt.Sprintf("Killed agent %s", args.AgentID)), out, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "agent_kill",
		Description: "Terminate an agent's session",
		Category:    CategoryAgent,
		Keywords:    []string{"kill", "terminate", "stop"},
	})
}

// ===== WORKFLOW TOOLS =====

type changesIntegrateInput struct {
	SourceStage  string `json:"source_stage" jsonschema:"required,Stage whose branch to merge"`
	TargetBranch string `json:"target_branch,omitempty" jsonschema:"Branch to merge into (default: main)"`
}

type changesIntegrateOutput struct {
	Message string `json:"message" jsonschema:"Merge result description"`
}

func (s *Server) registerWorkflowTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "changes_integrate",
		Description: "Merge a stage worktree's current branch into a target branch in the main repository",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args changesIntegrateInput) (*mcp.CallToolResult, changesIntegrateOutput, error) {
		done := s.instrument(ctx, "changes_integrate")
		var toolErr error
		defer func() { done(toolErr) }()

		msg, err := s.manager.Integrate(ctx, worktree.Stage(args.SourceStage), args.TargetBranch)
		if err != nil {
			toolErr = fmt.Errorf("integration failed: %w", err)
			return nil, changesIntegrateOutput{}, toolErr
		}
		return textResult(msg), changesIntegrateOutput{Message: msg}, nil
	})
	s.toolRegistry.Register(&ToolMetadata{
		Name:        "changes_integrate",
		Description: "Merge a stage branch into the target branch",
		Category:    CategoryWorkflow,
		Keywords:    []string{"merge", "integrate", "checkout", "main"},
	})
}

func toRecord(a *agent.Agent) agentRecord {
	rec := agentRecord{
		ID:        a.ID,
		Stage:     string(a.Stage),
		Task:      a.Task,
		Status:    string(a.Status),
		PID:       a.PID,
		Session:   a.SessionName,
		Runtime:   a.Runtime().Round(time.Second).String(),
		StartedAt: a.StartedAt.Format(time.RFC3339),
	}
	if a.CompletedAt != nil {
		rec.CompletedAt = a.CompletedAt.Format(time.RFC3339)
	}
	return rec
}
