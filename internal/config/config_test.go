package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.InterpreterTimeoutSeconds != want.InterpreterTimeoutSeconds {
		t.Errorf("InterpreterTimeoutSeconds = %d, want %d", cfg.InterpreterTimeoutSeconds, want.InterpreterTimeoutSeconds)
	}
	if cfg.ParseCacheSize != want.ParseCacheSize {
		t.Errorf("ParseCacheSize = %d, want %d", cfg.ParseCacheSize, want.ParseCacheSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.InterpreterURL != "" || cfg.RegistryURL != "" {
		t.Errorf("remote URLs should default to empty, got %q / %q", cfg.InterpreterURL, cfg.RegistryURL)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"interpreter_url": "http://localhost:9000/api/messages", "parse_cache_size": 10, "log_level": "debug"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InterpreterURL != "http://localhost:9000/api/messages" {
		t.Errorf("InterpreterURL = %q", cfg.InterpreterURL)
	}
	if cfg.ParseCacheSize != 10 {
		t.Errorf("ParseCacheSize = %d, want 10", cfg.ParseCacheSize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Untouched fields keep defaults
	if cfg.InterpreterRatePerMinute != 600 {
		t.Errorf("InterpreterRatePerMinute = %d, want 600", cfg.InterpreterRatePerMinute)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.InterpreterTimeout() != 10*time.Second {
		t.Errorf("InterpreterTimeout() = %v, want 10s", cfg.InterpreterTimeout())
	}
	if cfg.ParseCacheTTL() != 5*time.Minute {
		t.Errorf("ParseCacheTTL() = %v, want 5m", cfg.ParseCacheTTL())
	}
}

func TestLoadWithRepo_RepoWinsForScalars(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()
	nested := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(nested, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	writeConfig(t, globalDir, `{"registry_url": "http://global", "disabled_tools": ["routine_delete"], "intents": {"music.play": ["play [query]"], "tabs.close": ["close tab"]}}`)
	writeConfig(t, filepath.Join(repoRoot, ".routines"), `{"registry_url": "http://repo", "disabled_tools": ["routine_parse", "routine_delete"], "intents": {"music.play": ["put on [query]"]}}`)

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.RegistryURL != "http://repo" {
		t.Errorf("RegistryURL = %q, want repo value", cfg.RegistryURL)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 deduplicated entries", cfg.DisabledTools)
	}
	if got := cfg.Intents["music.play"]; len(got) != 1 || got[0] != "put on [query]" {
		t.Errorf("Intents[music.play] = %v, want repo override", got)
	}
	if _, ok := cfg.Intents["tabs.close"]; !ok {
		t.Error("Intents[tabs.close] should be kept from global config")
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if got := FindRepoConfig(t.TempDir()); got != "" {
		t.Errorf("FindRepoConfig() = %q, want empty", got)
	}
}

func TestMergeStringSlice(t *testing.T) {
	got := mergeStringSlice([]string{" a ", "b", ""}, []string{"b", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("mergeStringSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if mergeStringSlice(nil, nil) != nil {
		t.Error("mergeStringSlice(nil, nil) should be nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"http endpoints", Config{InterpreterURL: "http://localhost:9000/parse", RegistryURL: "https://reg.example/api/messages"}, false},
		{"relative url", Config{RegistryURL: "/api/messages"}, true},
		{"unsupported scheme", Config{InterpreterURL: "ftp://host/x"}, true},
		{"intent without patterns", Config{Intents: map[string][]string{"music.play": {}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithRepo_RejectsInvalidURL(t *testing.T) {
	globalDir := t.TempDir()
	writeConfig(t, globalDir, `{"interpreter_url": "localhost:9000"}`)

	if _, err := LoadWithRepo(globalDir, ""); err == nil {
		t.Error("LoadWithRepo() should reject a URL without scheme")
	}
}
