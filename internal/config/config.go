package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// InterpreterURL is the message endpoint of a remote interpreter.
	// Empty means utterances are interpreted locally with the Intents catalog.
	InterpreterURL string `json:"interpreter_url,omitempty"`

	// InterpreterTimeoutSeconds bounds a single remote parse call
	InterpreterTimeoutSeconds int `json:"interpreter_timeout_seconds,omitempty"`

	// InterpreterRatePerMinute limits remote parse calls. 0 keeps the default.
	InterpreterRatePerMinute int `json:"interpreter_rate_per_minute,omitempty"`

	// ParseCacheSize is the number of parsed utterances kept in memory.
	// Negative disables the cache.
	ParseCacheSize int `json:"parse_cache_size,omitempty"`

	// ParseCacheTTLSeconds is how long a cached parse result stays valid
	ParseCacheTTLSeconds int `json:"parse_cache_ttl_seconds,omitempty"`

	// RegistryURL is the message endpoint of a remote registry ("routines serve").
	// Empty means the local SQLite registry is used.
	RegistryURL string `json:"registry_url,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Intents maps an intent name to the phrase patterns the local interpreter matches.
	// Patterns use [slot] placeholders, e.g. "play [query] on youtube".
	Intents map[string][]string `json:"intents,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		InterpreterTimeoutSeconds: 10,
		InterpreterRatePerMinute:  600,
		ParseCacheSize:            256,
		ParseCacheTTLSeconds:      300,
		LogLevel:                  "info",
	}
}

// InterpreterTimeout returns the remote parse timeout as a duration.
func (c *Config) InterpreterTimeout() time.Duration {
	return time.Duration(c.InterpreterTimeoutSeconds) * time.Second
}

// ParseCacheTTL returns the parse cache TTL as a duration.
func (c *Config) ParseCacheTTL() time.Duration {
	return time.Duration(c.ParseCacheTTLSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global directory and the nearest
// repo .routines/config.json found walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects endpoint URLs that are not absolute http(s) URLs and
// intent entries without patterns.
func (c *Config) Validate() error {
	for key, raw := range map[string]string{"interpreter_url": c.InterpreterURL, "registry_url": c.RegistryURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s: want an absolute http(s) URL, got %q", key, raw)
		}
	}
	for name, patterns := range c.Intents {
		if len(patterns) == 0 {
			return fmt.Errorf("intents.%s: no patterns", name)
		}
	}
	return nil
}

// FindRepoConfig walks upward from startDir to find the nearest .routines/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".routines", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated;
// intent patterns are replaced per intent name.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		InterpreterURL:            firstString(overlay.InterpreterURL, base.InterpreterURL),
		InterpreterTimeoutSeconds: firstInt(overlay.InterpreterTimeoutSeconds, base.InterpreterTimeoutSeconds),
		InterpreterRatePerMinute:  firstInt(overlay.InterpreterRatePerMinute, base.InterpreterRatePerMinute),
		ParseCacheSize:            firstInt(overlay.ParseCacheSize, base.ParseCacheSize),
		ParseCacheTTLSeconds:      firstInt(overlay.ParseCacheTTLSeconds, base.ParseCacheTTLSeconds),
		RegistryURL:               firstString(overlay.RegistryURL, base.RegistryURL),
		LogLevel:                  firstString(overlay.LogLevel, base.LogLevel),
		DBMaxOpenConns:            firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:            firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	if len(base.Intents)+len(overlay.Intents) > 0 {
		result.Intents = make(map[string][]string, len(base.Intents)+len(overlay.Intents))
		for name, patterns := range base.Intents {
			result.Intents[name] = patterns
		}
		for name, patterns := range overlay.Intents {
			result.Intents[name] = patterns
		}
	}

	return result
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
