package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/wsearch/internal/search"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	// Engine may be nil; in that case the server is created without search
	// tools registered.
	Engine *search.Engine
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Engine != nil {
		RegisterSearchTool(s, cfg.Engine)
		RegisterRefreshTool(s, cfg.Engine)
		RegisterStatsTool(s, cfg.Engine)
	}

	return s
}
