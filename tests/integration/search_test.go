package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	mcputil "github.com/sha1n/wsearch/internal/mcp"
	"github.com/sha1n/wsearch/internal/search"
	"github.com/sha1n/wsearch/internal/store"
	"github.com/sha1n/wsearch/internal/symbols"
	"github.com/sha1n/wsearch/internal/workspace"
)

// ========================================
// Engine Lifecycle Tests
// ========================================

func TestEngineLifecycle_InitializeIndexesWorkspace(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\n\nfunc main() {\n\tprintln(\"hello world\")\n}",
	})

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	if !engine.IsReady() {
		t.Error("Expected engine to be ready after Initialize")
	}

	stats, err := engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Items == 0 {
		t.Error("Expected indexed items")
	}
}

func TestEngineLifecycle_ConcurrentInitialization(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\nfunc main() {}",
	})

	engine := newTestEngine(t, dir)
	defer closeEngine(t, engine)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			errs <- engine.Initialize(context.Background())
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent Initialize returned error: %v", err)
		}
	}
}

func TestEngineLifecycle_GracefulShutdown(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\nfunc main() {}",
	})

	engine := setupTestEngine(t, dir)

	if err := engine.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if engine.IsReady() {
		t.Error("Expected engine to not be ready after shutdown")
	}
}

// ========================================
// Search Tool Tests
// ========================================

func TestSearchTool_SearchReturnsResults(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"handler/user.go": "package handler\n\nfunc GetUserName() string { return \"\" }\n",
	})

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	handler := mcputil.NewSearchHandler(engine)
	ctx := context.Background()

	result, _, err := handler.Handle(ctx, &mcp.CallToolRequest{}, mcputil.SearchArgument{
		Query: "GetUserName",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.IsError {
		t.Errorf("Expected success, got error: %s", extractTextContent(result))
	}

	content := extractTextContent(result)
	if !strings.Contains(content, "Found") || !strings.Contains(content, "result") {
		t.Errorf("Expected search results, got: %s", content)
	}
}

func TestSearchTool_SearchRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 10; i++ {
		files[filepath.Join("pkg", strings.Repeat("a", i+1)+".go")] = "package pkg\nfunc widget() {}\n"
	}
	writeWorkspaceFiles(t, dir, files)

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	handler := mcputil.NewSearchHandler(engine)
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, mcputil.SearchArgument{
		Query: "widget",
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	content := extractTextContent(result)
	if strings.Count(content, "score") > 3 {
		t.Errorf("Expected at most 3 results, got: %s", content)
	}
}

func TestSearchTool_SearchNoResults(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\nfunc main() {}",
	})

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	handler := mcputil.NewSearchHandler(engine)
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, mcputil.SearchArgument{
		Query: "nonexistentterm12345xyz",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.IsError {
		t.Errorf("Expected no error for zero results search")
	}
	content := extractTextContent(result)
	if !strings.Contains(content, "No results") {
		t.Errorf("Expected 'No results' message, got: %s", content)
	}
}

func TestSearchTool_SearchEmptyQueryIsError(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\nfunc main() {}",
	})

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	handler := mcputil.NewSearchHandler(engine)
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, mcputil.SearchArgument{
		Query: "   ",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error for empty query")
	}
}

// ========================================
// Refresh / Stats Tool Tests
// ========================================

func TestRefreshTool_RebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\nfunc main() {}",
	})

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	writeWorkspaceFiles(t, dir, map[string]string{
		"extra.go": "package main\nfunc helperFunction() {}",
	})

	handler := mcputil.NewRefreshHandler(engine)
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, mcputil.RefreshArgument{})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.IsError {
		t.Errorf("Expected success, got: %s", extractTextContent(result))
	}

	searchHandler := mcputil.NewSearchHandler(engine)
	searchResult, _, err := searchHandler.Handle(context.Background(), &mcp.CallToolRequest{}, mcputil.SearchArgument{
		Query: "helperFunction",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !strings.Contains(extractTextContent(searchResult), "Found") {
		t.Errorf("Expected refresh to pick up new file, got: %s", extractTextContent(searchResult))
	}
}

func TestStatsTool_ReportsIndexSize(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\nfunc main() {}",
	})

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	handler := mcputil.NewStatsHandler(engine)
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, mcputil.StatsArgument{})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	content := extractTextContent(result)
	if !strings.Contains(content, "ready: true") {
		t.Errorf("Expected ready status, got: %s", content)
	}
}

// ========================================
// MCP Server Wiring Tests
// ========================================

func TestMCPServer_ToolsRegistered(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFiles(t, dir, map[string]string{
		"main.go": "package main\nfunc main() {}",
	})

	engine := setupTestEngine(t, dir)
	defer closeEngine(t, engine)

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
		Engine:  engine,
	})

	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestMCPServer_NoToolsWhenEngineNil(t *testing.T) {
	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
		Engine:  nil,
	})

	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

// ========================================
// Helper Functions
// ========================================

func writeWorkspaceFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for relPath, content := range files {
		fullPath := filepath.Join(root, relPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}
}

// newTestEngine wires an in-memory Engine over root without initializing it.
func newTestEngine(t *testing.T, root string) *search.Engine {
	t.Helper()
	cfg := search.Config{
		Root:             root,
		MinTrigramLength: 3,
		EnableCamelCase:  true,
		IncludeFiles:     true,
		IncludeSymbols:   true,
		MaxResults:       50,
	}
	return search.New(cfg, store.NewMemoryStore(), workspace.NewWalkEnumerator(), symbols.NewRegexProvider(), nil, "")
}

// setupTestEngine wires and initializes an Engine over root.
func setupTestEngine(t *testing.T, root string) *search.Engine {
	t.Helper()
	engine := newTestEngine(t, root)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return engine
}

// closeEngine shuts down the engine and reports any errors.
func closeEngine(t *testing.T, engine *search.Engine) {
	t.Helper()
	if err := engine.Shutdown(); err != nil {
		t.Errorf("Failed to shut down engine: %v", err)
	}
}

// extractTextContent extracts text from an MCP result.
func extractTextContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
