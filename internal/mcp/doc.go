// Package mcp exposes the orchestrator over the Model Context Protocol.
//
// The server registers typed tools (worktree provisioning, agent
// lifecycle, workflow status, change integration) against the MCP SDK
// (github.com/modelcontextprotocol/go-sdk/mcp) and serves them on the
// stdio transport. Handlers call internal services directly; every
// invocation is instrumented with OpenTelemetry metrics.
package mcp
