package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	w := s.Workspace
	logger.InfoContext(ctx, "Config: workspace.root", "value", w.Root)
	logger.InfoContext(ctx, "Config: workspace.storage", "value", w.Storage)
	logger.InfoContext(ctx, "Config: workspace.base_dir", "value", w.BaseDir)
	logger.InfoContext(ctx, "Config: workspace.include_files", "value", w.IncludeFiles)
	logger.InfoContext(ctx, "Config: workspace.include_symbols", "value", w.IncludeSymbols)
	logger.InfoContext(ctx, "Config: workspace.max_results", "value", w.MaxResults)
	logger.InfoContext(ctx, "Config: workspace.exclude_patterns", "value", w.ExcludePatterns)
	logger.InfoContext(ctx, "Config: workspace.case_sensitive", "value", w.CaseSensitive)
	logger.InfoContext(ctx, "Config: workspace.min_trigram_length", "value", w.MinTrigramLength)
	logger.InfoContext(ctx, "Config: workspace.enable_camelcase", "value", w.EnableCamelCase)
	logger.InfoContext(ctx, "Config: workspace.batch_size", "value", w.BatchSize)
	logger.InfoContext(ctx, "Config: workspace.watch", "value", w.Watch)
	logger.InfoContext(ctx, "Config: workspace.poll_interval", "value", w.PollInterval)
	logger.InfoContext(ctx, "Config: workspace.debug", "value", w.Debug)
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("workspace", WorkspaceSettingsLogValue(s.Workspace)),
	)
}

// WorkspaceSettingsLogValue returns a slog.Value for WorkspaceSettings
func WorkspaceSettingsLogValue(w WorkspaceSettings) slog.Value {
	return slog.GroupValue(
		slog.String("root", w.Root),
		slog.String("storage", w.Storage),
		slog.String("base_dir", w.BaseDir),
		slog.Bool("include_files", w.IncludeFiles),
		slog.Bool("include_symbols", w.IncludeSymbols),
		slog.Int("max_results", w.MaxResults),
		slog.Any("exclude_patterns", w.ExcludePatterns),
		slog.Bool("case_sensitive", w.CaseSensitive),
		slog.Int("min_trigram_length", w.MinTrigramLength),
		slog.Bool("enable_camelcase", w.EnableCamelCase),
		slog.Int("batch_size", w.BatchSize),
		slog.Bool("watch", w.Watch),
		slog.Duration("poll_interval", w.PollInterval),
		slog.Bool("debug", w.Debug),
	)
}
