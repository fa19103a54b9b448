// Package mcptools exposes the registry, recall, and gravity operations
// as MCP tools so assistants can call them directly over stdio or
// streamable HTTP.
package mcptools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgeos/graph-service/internal/entangle"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/gravity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/recall"
)

// Deps holds the engines the MCP tools dispatch to.
type Deps struct {
	Registry *graph.Registry
	Recall   *recall.Engine
	Gravity  *gravity.Orchestrator
	Scanner  *entangle.Scanner
	Patterns *memory.PatternStore
	Pad      *memory.Scratchpad
}

// NewServer builds the MCP server with all tools registered.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer("graph-service", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	registerRegistryTools(s, deps)
	registerRecallTools(s, deps)
	registerMemoryTools(s, deps)
	return s
}

// ServeStdio runs the MCP server on stdin/stdout until EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
