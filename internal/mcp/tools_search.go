package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/wsearch/internal/query"
	"github.com/sha1n/wsearch/internal/search"
	"github.com/sha1n/wsearch/internal/store"
)

// SearchArgument defines the workspace_search tool's parameters.
type SearchArgument struct {
	Query string `json:"query" jsonschema_description:"Search query (file name, symbol name, or abbreviation)"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results (defaults to the configured max_results)"`
}

// SearchHandler handles the workspace_search MCP tool.
type SearchHandler struct {
	engine *search.Engine
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	results, err := h.engine.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return h.formatResults(results, args.Query), nil, nil
}

func (h *SearchHandler) formatResults(results []query.Result, queryStr string) *mcp.CallToolResult {
	if len(results) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("No results found for query: %s", queryStr)},
			},
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), queryStr))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, r.Item.Kind, r.Item.Name))
		if r.Item.Kind != store.KindFile {
			sb.WriteString(fmt.Sprintf(" (%s)", r.Item.Path))
		}
		sb.WriteString(fmt.Sprintf(" - score %d\n", r.Score))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "workspace_search",
		Description: "Search the indexed workspace for files and symbols by name",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, engine *search.Engine) {
	handler := NewSearchHandler(engine)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
