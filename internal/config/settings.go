package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Storage backend constants (spec §6 storage enum).
const (
	StoragePersistent = "persistent"
	StorageMemory     = "memory"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// WorkspaceSettings configures the search engine's view of the workspace
// (spec §6 configuration table).
type WorkspaceSettings struct {
	Root              string        `mapstructure:"root"`
	IncludeFiles      bool          `mapstructure:"include_files"`
	IncludeSymbols    bool          `mapstructure:"include_symbols"`
	MaxResults        int           `mapstructure:"max_results"`
	ExcludePatterns   []string      `mapstructure:"exclude_patterns"`
	CaseSensitive     bool          `mapstructure:"case_sensitive"`
	MinTrigramLength  int           `mapstructure:"min_trigram_length"`
	EnableCamelCase   bool          `mapstructure:"enable_camelcase"`
	BatchSize         int           `mapstructure:"batch_size"`
	Storage           string        `mapstructure:"storage"`
	BaseDir           string        `mapstructure:"base_dir"`
	Watch             bool          `mapstructure:"watch"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Debug             bool          `mapstructure:"debug"`
}

// Settings application settings
type Settings struct {
	Transport string            `mapstructure:"transport"`
	Host      string            `mapstructure:"host"`
	Port      int               `mapstructure:"port"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Workspace WorkspaceSettings `mapstructure:"workspace"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	// Workspace defaults
	v.SetDefault("workspace.root", ".")
	v.SetDefault("workspace.include_files", true)
	v.SetDefault("workspace.include_symbols", true)
	v.SetDefault("workspace.max_results", 50)
	v.SetDefault("workspace.case_sensitive", false)
	v.SetDefault("workspace.min_trigram_length", 3)
	v.SetDefault("workspace.enable_camelcase", true)
	v.SetDefault("workspace.batch_size", 10000)
	v.SetDefault("workspace.storage", StoragePersistent)
	v.SetDefault("workspace.base_dir", defaultWorkspaceBaseDir())
	v.SetDefault("workspace.watch", true)
	v.SetDefault("workspace.poll_interval", 2*time.Second)
	v.SetDefault("workspace.debug", false)

	// Environment variables
	v.SetEnvPrefix("WSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("auth.type", "WSEARCH_AUTH_TYPE")
	_ = v.BindEnv("auth.basic.username", "WSEARCH_AUTH_BASIC_USERNAME")
	_ = v.BindEnv("auth.basic.password", "WSEARCH_AUTH_BASIC_PASSWORD")
	_ = v.BindEnv("auth.api_keys", "WSEARCH_AUTH_API_KEYS")

	// Workspace env var bindings
	_ = v.BindEnv("workspace.root", "WSEARCH_WORKSPACE_ROOT")
	_ = v.BindEnv("workspace.include_files", "WSEARCH_WORKSPACE_INCLUDE_FILES")
	_ = v.BindEnv("workspace.include_symbols", "WSEARCH_WORKSPACE_INCLUDE_SYMBOLS")
	_ = v.BindEnv("workspace.max_results", "WSEARCH_WORKSPACE_MAX_RESULTS")
	_ = v.BindEnv("workspace.exclude_patterns", "WSEARCH_WORKSPACE_EXCLUDE_PATTERNS")
	_ = v.BindEnv("workspace.case_sensitive", "WSEARCH_WORKSPACE_CASE_SENSITIVE")
	_ = v.BindEnv("workspace.min_trigram_length", "WSEARCH_WORKSPACE_MIN_TRIGRAM_LENGTH")
	_ = v.BindEnv("workspace.enable_camelcase", "WSEARCH_WORKSPACE_ENABLE_CAMELCASE")
	_ = v.BindEnv("workspace.batch_size", "WSEARCH_WORKSPACE_BATCH_SIZE")
	_ = v.BindEnv("workspace.storage", "WSEARCH_WORKSPACE_STORAGE")
	_ = v.BindEnv("workspace.base_dir", "WSEARCH_WORKSPACE_BASE_DIR")
	_ = v.BindEnv("workspace.watch", "WSEARCH_WORKSPACE_WATCH")
	_ = v.BindEnv("workspace.poll_interval", "WSEARCH_WORKSPACE_POLL_INTERVAL")
	_ = v.BindEnv("workspace.debug", "WSEARCH_WORKSPACE_DEBUG")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("transport", flags.Lookup("transport"))
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("auth.type", flags.Lookup("auth-type"))
		_ = v.BindPFlag("auth.basic.username", flags.Lookup("auth-basic-username"))
		_ = v.BindPFlag("auth.basic.password", flags.Lookup("auth-basic-password"))
		_ = v.BindPFlag("auth.api_keys", flags.Lookup("auth-api-keys"))

		// Workspace CLI flags
		_ = v.BindPFlag("workspace.root", flags.Lookup("workspace-root"))
		_ = v.BindPFlag("workspace.include_files", flags.Lookup("workspace-include-files"))
		_ = v.BindPFlag("workspace.include_symbols", flags.Lookup("workspace-include-symbols"))
		_ = v.BindPFlag("workspace.max_results", flags.Lookup("workspace-max-results"))
		_ = v.BindPFlag("workspace.exclude_patterns", flags.Lookup("workspace-exclude-patterns"))
		_ = v.BindPFlag("workspace.case_sensitive", flags.Lookup("workspace-case-sensitive"))
		_ = v.BindPFlag("workspace.min_trigram_length", flags.Lookup("workspace-min-trigram-length"))
		_ = v.BindPFlag("workspace.enable_camelcase", flags.Lookup("workspace-enable-camelcase"))
		_ = v.BindPFlag("workspace.batch_size", flags.Lookup("workspace-batch-size"))
		_ = v.BindPFlag("workspace.storage", flags.Lookup("workspace-storage"))
		_ = v.BindPFlag("workspace.base_dir", flags.Lookup("workspace-base-dir"))
		_ = v.BindPFlag("workspace.watch", flags.Lookup("workspace-watch"))
		_ = v.BindPFlag("workspace.poll_interval", flags.Lookup("workspace-poll-interval"))
		_ = v.BindPFlag("workspace.debug", flags.Lookup("workspace-debug"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv("WSEARCH_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}

	// Handle explicit parsing of exclude patterns if provided via env var as comma-separated string
	excludeEnv := os.Getenv("WSEARCH_WORKSPACE_EXCLUDE_PATTERNS")
	if excludeEnv != "" {
		if len(settings.Workspace.ExcludePatterns) == 0 || (len(settings.Workspace.ExcludePatterns) == 1 && strings.Contains(settings.Workspace.ExcludePatterns[0], ",")) {
			settings.Workspace.ExcludePatterns = strings.Split(excludeEnv, ",")
		}
	}

	// Trim spaces from exclude patterns
	for i := range settings.Workspace.ExcludePatterns {
		settings.Workspace.ExcludePatterns[i] = strings.TrimSpace(settings.Workspace.ExcludePatterns[i])
	}

	// Filter out empty patterns
	settings.Workspace.ExcludePatterns = filterEmptyStrings(settings.Workspace.ExcludePatterns)

	// Expand home directory in root and base_dir
	settings.Workspace.Root = expandHomeDir(settings.Workspace.Root)
	settings.Workspace.BaseDir = expandHomeDir(settings.Workspace.BaseDir)

	return &settings, nil
}

// defaultWorkspaceBaseDir returns the default directory for the persistent
// index file.
func defaultWorkspaceBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wsearch"
	}
	return filepath.Join(home, ".wsearch")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if err := validateWorkspaceSettings(&s.Workspace); err != nil {
		return err
	}

	return nil
}

// validateWorkspaceSettings validates the workspace search configuration.
func validateWorkspaceSettings(w *WorkspaceSettings) error {
	if w.Root == "" {
		return errors.New("workspace-root cannot be empty")
	}

	switch w.Storage {
	case StoragePersistent, StorageMemory:
		// valid
	default:
		return errors.New("workspace-storage must be 'persistent' or 'memory', got: " + w.Storage)
	}

	if w.Storage == StoragePersistent && w.BaseDir == "" {
		return errors.New("workspace-base-dir cannot be empty when storage is persistent")
	}

	if w.MaxResults <= 0 {
		return errors.New("workspace-max-results must be positive")
	}

	if w.MinTrigramLength <= 0 {
		return errors.New("workspace-min-trigram-length must be positive")
	}

	if w.BatchSize <= 0 {
		return errors.New("workspace-batch-size must be positive")
	}

	if w.Watch && w.PollInterval < 0 {
		return errors.New("workspace-poll-interval cannot be negative")
	}

	return nil
}
