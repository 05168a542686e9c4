package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/wsearch/internal/config"
	mcputil "github.com/sha1n/wsearch/internal/mcp"
	"github.com/sha1n/wsearch/internal/search"
	"github.com/sha1n/wsearch/internal/store"
	"github.com/sha1n/wsearch/internal/symbols"
	"github.com/sha1n/wsearch/internal/workspace"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(*config.Settings) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	// Load settings
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to avoid buffering issues
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting wsearch server", "version", version)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	} else {
		slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
		return params.StartSSEServer(mcpServer, settings)
	}
}

// CreateMCPServer creates the MCP server with registered tools
func CreateMCPServer(settings *config.Settings) (*mcp.Server, func(), error) {
	engine, cleanup, err := newSearchEngine(&settings.Workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create search engine: %w", err)
	}

	// Initialize in background context (not tied to request context). A
	// failure is logged and does not block startup; the engine keeps that
	// first result, so later Search calls return the same error.
	if err := engine.Initialize(context.Background()); err != nil {
		slog.Error("workspace index initialization failed", "error", err)
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "wsearch",
		Version: "1.0.0",
		Engine:  engine,
	})

	return server, cleanup, nil
}

// newSearchEngine wires a search.Engine from workspace settings, selecting
// the storage adapter and file-watch notifier the way the settings direct.
func newSearchEngine(ws *config.WorkspaceSettings) (*search.Engine, func(), error) {
	var adapter store.Adapter
	var lockPath string

	switch ws.Storage {
	case config.StorageMemory:
		adapter = store.NewMemoryStore()
	default:
		if err := os.MkdirAll(ws.BaseDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create base dir: %w", err)
		}
		dbPath := filepath.Join(ws.BaseDir, "wsearch.db")
		sqliteStore, err := store.NewSQLiteStore(dbPath, ws.BatchSize, slog.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		sqliteStore.StartSnapshotLoop(0)
		adapter = sqliteStore
		lockPath = filepath.Join(ws.BaseDir, "wsearch.lock")
	}

	var notifier workspace.Notifier
	if ws.Watch {
		notifier = workspace.NewNotifier(ws.PollInterval)
	}

	cfg := search.Config{
		Root:             ws.Root,
		ExcludePatterns:  ws.ExcludePatterns,
		CaseSensitive:    ws.CaseSensitive,
		MinTrigramLength: ws.MinTrigramLength,
		EnableCamelCase:  ws.EnableCamelCase,
		IncludeFiles:     ws.IncludeFiles,
		IncludeSymbols:   ws.IncludeSymbols,
		MaxResults:       ws.MaxResults,
		Watch:            ws.Watch,
		PollInterval:     ws.PollInterval,
	}

	engine := search.New(cfg, adapter, workspace.NewWalkEnumerator(), symbols.NewRegexProvider(), notifier, lockPath)

	cleanup := func() {
		if err := engine.Shutdown(); err != nil {
			slog.Error("failed to shut down search engine", "error", err)
		}
	}

	return engine, cleanup, nil
}
