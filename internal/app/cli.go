package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	flags.StringP("workspace-root", "r", "", "Workspace root directory to index")
	flags.Bool("workspace-include-files", false, "Include files in search results")
	flags.Bool("workspace-include-symbols", false, "Include symbols in search results")
	flags.Int("workspace-max-results", 0, "Maximum number of search results")
	flags.StringSlice("workspace-exclude-patterns", nil, "Glob patterns to exclude (comma-separated)")
	flags.Bool("workspace-case-sensitive", false, "Case-sensitive search")
	flags.Int("workspace-min-trigram-length", 0, "Minimum query length before trigram search kicks in")
	flags.Bool("workspace-enable-camelcase", false, "Enable camelCase/snake_case token search")
	flags.Int("workspace-batch-size", 0, "Index writer batch size")
	flags.String("workspace-storage", "", "Storage backend: persistent or memory")
	flags.String("workspace-base-dir", "", "Base directory for the persistent store")
	flags.Bool("workspace-watch", false, "Watch the workspace for file changes")
	flags.Duration("workspace-poll-interval", 0, "Polling interval used as the file-watch fallback")
	flags.Bool("workspace-debug", false, "Enable debug logging")
}
