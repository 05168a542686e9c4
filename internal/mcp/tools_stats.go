package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/wsearch/internal/search"
)

// StatsArgument defines the workspace_stats tool's parameters. It takes no
// input; the struct exists so mcp.AddTool can derive a schema.
type StatsArgument struct{}

// StatsHandler handles the workspace_stats MCP tool.
type StatsHandler struct {
	engine *search.Engine
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(engine *search.Engine) *StatsHandler {
	return &StatsHandler{engine: engine}
}

// Handle reports current index totals and readiness.
func (h *StatsHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatsArgument) (*mcp.CallToolResult, any, error) {
	stats, err := h.engine.Stats(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to read stats: %s", err)), nil, nil
	}

	text := fmt.Sprintf(
		"ready: %t\nitems: %d\ndistinct trigrams: %d\ndistinct tokens: %d\nlast updated: %s",
		h.engine.IsReady(), stats.Items, stats.DistinctTrigrams, stats.DistinctTokens,
		stats.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
	)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *StatsHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "workspace_stats",
		Description: "Report workspace index size and readiness",
	}
}

// RegisterStatsTool registers the stats tool with an MCP server.
func RegisterStatsTool(server *mcp.Server, engine *search.Engine) {
	handler := NewStatsHandler(engine)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
