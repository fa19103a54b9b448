package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgeos/graph-service/internal/gravity"
	"github.com/forgeos/graph-service/internal/model"
)

func roleArg(s string) model.Role {
	if s == "" {
		return model.RoleConnector
	}
	return model.Role(s)
}

func registerRecallTools(s *server.MCPServer, deps Deps) {
	s.AddTool(mcp.NewTool("recall",
		mcp.WithDescription("Attention-weighted semantic recall across decisions, threads, priming, patterns, conversations, and messages."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to recall")),
		mcp.WithString("project", mcp.Description("Restrict to one project")),
		mcp.WithNumber("budget", mcp.Description("Character budget for the assembled context")),
		mcp.WithNumber("min_score", mcp.Description("Drop results below this attention score")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := deps.Recall.Recall(ctx, query,
			req.GetString("project", ""),
			req.GetInt("budget", 0),
			req.GetFloat("min_score", 0))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(out)
	})

	s.AddTool(mcp.NewTool("context_load",
		mcp.WithDescription("Assemble a project briefing: active decisions, open threads, pending flags, stale items, conflicts, plus query-driven recall."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project to brief on")),
		mcp.WithString("query", mcp.Description("Optional focus query for the recall portion")),
		mcp.WithNumber("budget", mcp.Description("Character budget")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := deps.Recall.ContextLoad(ctx, project, req.GetString("query", ""), req.GetInt("budget", 0))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(out)
	})

	s.AddTool(mcp.NewTool("observe",
		mcp.WithDescription("Multi-lens observation: recall the same query through several project lenses and report convergences, divergences, and field coherence."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to observe")),
		mcp.WithString("lens_config", mcp.Description("Named lens configuration to use")),
		mcp.WithString("lens_project", mcp.Description("Single explicit lens project")),
		mcp.WithString("lens_role", mcp.Description("Role for the explicit lens")),
		mcp.WithNumber("budget", mcp.Description("Total character budget split across lenses")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var explicit []gravity.LensInput
		if project := req.GetString("lens_project", ""); project != "" {
			explicit = append(explicit, gravity.LensInput{
				Project: project,
				Role:    roleArg(req.GetString("lens_role", "")),
			})
		}
		field, err := deps.Gravity.Observe(ctx, query, explicit,
			req.GetString("lens_config", ""), req.GetInt("budget", 0))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(field)
	})

	s.AddTool(mcp.NewTool("entanglement_scan",
		mcp.WithDescription("Run a full entanglement scan: cross-project resonances, clusters, lineage bridges, and loose ends."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scan, err := deps.Scanner.Scan(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"scan_id": scan.ScanID, "stats": scan.Stats})
	})
}
