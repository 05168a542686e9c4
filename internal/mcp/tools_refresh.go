package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/wsearch/internal/search"
)

// RefreshArgument defines the workspace_refresh tool's parameters. It takes
// no input; the struct exists so mcp.AddTool can derive a schema.
type RefreshArgument struct{}

// RefreshHandler handles the workspace_refresh MCP tool.
type RefreshHandler struct {
	engine *search.Engine
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(engine *search.Engine) *RefreshHandler {
	return &RefreshHandler{engine: engine}
}

// Handle triggers a full rebuild of the workspace index.
func (h *RefreshHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args RefreshArgument) (*mcp.CallToolResult, any, error) {
	if err := h.engine.Refresh(ctx); err != nil {
		return errorResult(fmt.Sprintf("Refresh failed: %s", err)), nil, nil
	}

	stats, err := h.engine.Stats(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Refresh succeeded but stats are unavailable: %s", err)), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Workspace reindexed: %d items indexed.", stats.Items)},
		},
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *RefreshHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "workspace_refresh",
		Description: "Force a full rebuild of the workspace search index",
	}
}

// RegisterRefreshTool registers the refresh tool with an MCP server.
func RegisterRefreshTool(server *mcp.Server, engine *search.Engine) {
	handler := NewRefreshHandler(engine)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
