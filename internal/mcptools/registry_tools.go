package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/model"
)

func registerRegistryTools(s *server.MCPServer, deps Deps) {
	reg := deps.Registry

	s.AddTool(mcp.NewTool("register_conversation",
		mcp.WithDescription("Register a conversation under a project, returning its stable UUID and display ID. Idempotent on source_id."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Caller-side conversation identifier")),
		mcp.WithString("project_name", mcp.Required(), mcp.Description("Project the conversation belongs to")),
		mcp.WithString("name", mcp.Description("Human-readable conversation name")),
		mcp.WithString("summary", mcp.Description("Short summary of the conversation")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sourceID, err := req.RequireString("source_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		project, err := req.RequireString("project_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		conversation, action, err := reg.RegisterConversation(ctx, graph.RegisterConversationInput{
			SourceID:    sourceID,
			ProjectName: project,
			Name:        req.GetString("name", ""),
			Summary:     req.GetString("summary", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"conversation": conversation, "action": action})
	})

	s.AddTool(mcp.NewTool("upsert_decision",
		mcp.WithDescription("Insert, update, or revalidate a decision. Same text revalidates; changed text updates in place."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The decision text")),
		mcp.WithString("project", mcp.Required(), mcp.Description("Owning project")),
		mcp.WithString("originated_conversation", mcp.Description("UUID of the conversation the decision came from")),
		mcp.WithString("local_id", mcp.Description("Caller-side short ID like D042")),
		mcp.WithNumber("epistemic_tier", mcp.Description("Confidence tier in [0,1]")),
		mcp.WithString("rationale", mcp.Description("Why the decision was made")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in := graph.DecisionInput{
			Text:                   text,
			Project:                project,
			OriginatedConversation: req.GetString("originated_conversation", ""),
			LocalID:                req.GetString("local_id", ""),
			Rationale:              req.GetString("rationale", ""),
		}
		if tier := req.GetFloat("epistemic_tier", -1); tier >= 0 {
			in.EpistemicTier = &tier
		}
		result, err := reg.UpsertDecision(ctx, in)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	})

	s.AddTool(mcp.NewTool("upsert_thread",
		mcp.WithDescription("Insert or update an open work thread."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Thread title")),
		mcp.WithString("project", mcp.Required(), mcp.Description("Owning project")),
		mcp.WithString("first_seen_conversation", mcp.Description("UUID of the conversation that opened the thread")),
		mcp.WithString("status", mcp.Description("open, blocked, or resolved")),
		mcp.WithString("priority", mcp.Description("high, medium, or low")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := reg.UpsertThread(ctx, graph.ThreadInput{
			Title:                 title,
			Project:               project,
			FirstSeenConversation: req.GetString("first_seen_conversation", ""),
			Status:                model.ThreadStatus(req.GetString("status", "")),
			Priority:              model.Priority(req.GetString("priority", "")),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	})

	s.AddTool(mcp.NewTool("resolve_thread",
		mcp.WithDescription("Mark a thread resolved with a resolution note."),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("Thread UUID or display ID")),
		mcp.WithString("resolution", mcp.Required(), mcp.Description("How the thread was resolved")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("uuid")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resolution, err := req.RequireString("resolution")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := reg.ResolveThread(ctx, id, resolution); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("resolved"), nil
	})

	s.AddTool(mcp.NewTool("plant_flag",
		mcp.WithDescription("Plant an insight flag for later compilation. Deterministic: the same flag is never planted twice."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Owning project")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What was noticed")),
		mcp.WithString("category", mcp.Description("inversion, isomorphism, fsd, manifestation, trap, or general")),
		mcp.WithString("conversation_id", mcp.Description("Conversation where the flag was raised")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		description, err := req.RequireString("description")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		flag, planted, err := reg.PlantFlag(ctx, graph.FlagInput{
			Project:        project,
			Description:    description,
			Category:       model.FlagCategory(req.GetString("category", "")),
			ConversationID: req.GetString("conversation_id", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"flag": flag, "planted": planted})
	})

	s.AddTool(mcp.NewTool("trace_lineage",
		mcp.WithDescription("Trace a conversation's compression lineage: ancestors, descendants, and projects touched."),
		mcp.WithString("conversation_uuid", mcp.Required(), mcp.Description("Conversation UUID")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("conversation_uuid")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		trace, err := reg.TraceConversation(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(trace)
	})
}
