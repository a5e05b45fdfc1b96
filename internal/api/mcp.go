package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/rankd/internal/engine"
	"github.com/kalambet/rankd/internal/stats"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Engine *engine.Engine
}

// NewMCPServer creates an MCP server with all rankd tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"rankd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("rankd — adaptive search re-ranking that learns per-workspace relevance from feedback."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("index_item",
			mcp.WithDescription("Register an item in a workspace so searches can rank it and feedback can attach to it."),
			mcp.WithString("workspace", mcp.Description("Workspace name"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Item path or identifier"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Item content; identity is derived from it"), mcp.Required()),
			mcp.WithString("concept", mcp.Description("Optional concept tag, e.g. \"jwt validation\"")),
		),
		mcpIndexItem(deps),
	)

	s.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Re-rank candidate items for a query using learned relevance. Returns ranked results and the query id for feedback."),
			mcp.WithString("workspace", mcp.Description("Workspace name"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Query text"), mcp.Required()),
			mcp.WithString("candidates", mcp.Description(`JSON array of {"item_id"|"path", "semantic"} candidates`), mcp.Required()),
			mcp.WithNumber("k", mcp.Description("Maximum number of results (default 10)")),
			mcp.WithString("concept", mcp.Description("Restrict results to items whose concept overlaps this label")),
			mcp.WithBoolean("explain", mcp.Description("Attach per-component score breakdowns")),
			mcp.WithBoolean("baseline", mcp.Description("Rank by semantic score only, ignoring learned signals")),
		),
		mcpSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("record_feedback",
			mcp.WithDescription("Record one interaction (vote, dwell, click rank) for an item under a query."),
			mcp.WithString("workspace", mcp.Description("Workspace name"), mcp.Required()),
			mcp.WithString("query_id", mcp.Description("Query id from a search response")),
			mcp.WithString("query", mcp.Description("Query text, used when query_id is not kept")),
			mcp.WithString("item_id", mcp.Description("Item id")),
			mcp.WithString("path", mcp.Description("Item path, used when item_id is not kept")),
			mcp.WithNumber("useful", mcp.Description("Explicit vote: -1, 0, or +1")),
			mcp.WithNumber("dwell_ms", mcp.Description("Observed dwell time in milliseconds")),
			mcp.WithNumber("click_rank", mcp.Description("1-based rank position that was clicked")),
		),
		mcpRecordFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("workspace_stats",
			mcp.WithDescription("Aggregate statistics for one workspace."),
			mcp.WithString("workspace", mcp.Description("Workspace name"), mcp.Required()),
		),
		mcpWorkspaceStats(deps),
	)

	s.AddTool(
		mcp.NewTool("compare_workspaces",
			mcp.WithDescription("Side-by-side statistics for several workspaces (all known workspaces when none given)."),
			mcp.WithArray("workspaces", mcp.Description("Workspace names to compare")),
		),
		mcpCompareWorkspaces(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"rankd://workspaces",
			"Workspaces",
			mcp.WithResourceDescription("Known workspaces as a JSON array"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceWorkspaces(deps),
	)

	return s
}

func mcpIndexItem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspace, err := req.RequireString("workspace")
		if err != nil {
			return mcpError("workspace is required"), nil
		}
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		item, err := deps.Engine.Index(ctx, workspace, engine.IndexRequest{
			Path:    path,
			Content: content,
			Concept: req.GetString("concept", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("indexing failed: %v", err)), nil
		}

		b, err := json.Marshal(item)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal item: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspace, err := req.RequireString("workspace")
		if err != nil {
			return mcpError("workspace is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		candidatesJSON, err := req.RequireString("candidates")
		if err != nil {
			return mcpError("candidates is required"), nil
		}

		var candidates []engine.Candidate
		if err := json.Unmarshal([]byte(candidatesJSON), &candidates); err != nil {
			return mcpError(fmt.Sprintf("invalid candidates JSON: %v", err)), nil
		}

		resp, err := deps.Engine.Search(ctx, engine.SearchRequest{
			Workspace:  workspace,
			Query:      query,
			Candidates: candidates,
			K:          req.GetInt("k", 0),
			Concept:    req.GetString("concept", ""),
			Explain:    req.GetBool("explain", false),
			Baseline:   req.GetBool("baseline", false),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecordFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspace, err := req.RequireString("workspace")
		if err != nil {
			return mcpError("workspace is required"), nil
		}

		id, err := deps.Engine.Feedback(ctx, engine.FeedbackRequest{
			Workspace: workspace,
			QueryID:   req.GetString("query_id", ""),
			Query:     req.GetString("query", ""),
			ItemID:    req.GetString("item_id", ""),
			Path:      req.GetString("path", ""),
			Useful:    req.GetInt("useful", 0),
			DwellMS:   int64(req.GetInt("dwell_ms", 0)),
			ClickRank: req.GetInt("click_rank", 0),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("recording feedback failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Recorded interaction %s", id)), nil
	}
}

func mcpWorkspaceStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspace, err := req.RequireString("workspace")
		if err != nil {
			return mcpError("workspace is required"), nil
		}

		s, err := stats.Summarize(deps.Engine.Store(), workspace)
		if err != nil {
			return mcpError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		b, err := json.Marshal(s)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCompareWorkspaces(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := stats.Compare(deps.Engine.Store(), req.GetStringSlice("workspaces", nil))
		if err != nil {
			return mcpError(fmt.Sprintf("compare failed: %v", err)), nil
		}
		b, err := json.Marshal(report)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceWorkspaces(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := deps.Engine.Store().ListWorkspaces()
		if err != nil {
			return nil, fmt.Errorf("failed to list workspaces: %w", err)
		}
		if names == nil {
			names = []string{}
		}
		b, err := json.Marshal(names)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal workspaces: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
