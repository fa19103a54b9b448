package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
)

func registerMemoryTools(s *server.MCPServer, deps Deps) {
	s.AddTool(mcp.NewTool("store_pattern",
		mcp.WithDescription("Store a reusable pattern. Near-duplicates are merged rather than duplicated."),
		mcp.WithString("pattern_type", mcp.Required(), mcp.Description("Pattern category")),
		mcp.WithString("content", mcp.Required(), mcp.Description("The pattern text")),
		mcp.WithNumber("success_score", mcp.Description("Observed success in [0,1]")),
		mcp.WithString("source_project", mcp.Description("Project the pattern came from")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patternType, err := req.RequireString("pattern_type")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		pattern, action, err := deps.Patterns.Store(ctx, memory.PatternInput{
			PatternType:       model.PatternType(patternType),
			Content:           content,
			SuccessScore:      req.GetFloat("success_score", 0),
			SourceProjectName: req.GetString("source_project", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"pattern": pattern, "action": action})
	})

	s.AddTool(mcp.NewTool("match_patterns",
		mcp.WithDescription("Find stored patterns relevant to a query, ranked by similarity and success score."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to match against")),
		mcp.WithString("pattern_type", mcp.Description("Restrict to one pattern category")),
		mcp.WithNumber("limit", mcp.Description("Max patterns to return")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		matched, err := deps.Patterns.Match(ctx, query,
			model.PatternType(req.GetString("pattern_type", "")),
			req.GetInt("limit", 5))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(matched)
	})

	s.AddTool(mcp.NewTool("scratchpad_set",
		mcp.WithDescription("Store a value in the session scratchpad. Entries expire after their TTL."),
		mcp.WithString("context_id", mcp.Required(), mcp.Description("Session or conversation scope")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Entry key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Entry value")),
		mcp.WithNumber("ttl_seconds", mcp.Description("Override the default TTL")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contextID, err := req.RequireString("context_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := deps.Pad.Set(ctx, contextID, key, value, req.GetInt("ttl_seconds", 0)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("stored"), nil
	})

	s.AddTool(mcp.NewTool("scratchpad_get",
		mcp.WithDescription("Read a value from the session scratchpad."),
		mcp.WithString("context_id", mcp.Required(), mcp.Description("Session or conversation scope")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Entry key")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contextID, err := req.RequireString("context_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := deps.Pad.Get(ctx, contextID, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"value": value})
	})
}
