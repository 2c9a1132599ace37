// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, .env files, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
identity:
  url: "https://auth.example.com"
  api_key: "anon-key"
  session_cache: "~/.parley/session.json"
  refresh_leeway: "2m"

backend:
  url: "https://api.example.com"
  timeout: "45s"

chat:
  allow_anonymous: false

agents:
  file: "./agents.toml"

audit:
  path: "./audit.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Identity.URL != "https://auth.example.com" {
		t.Errorf("Identity.URL = %q, want %q", cfg.Identity.URL, "https://auth.example.com")
	}
	if cfg.Identity.APIKey != "anon-key" {
		t.Errorf("Identity.APIKey = %q, want %q", cfg.Identity.APIKey, "anon-key")
	}
	if cfg.Identity.RefreshLeeway != 2*time.Minute {
		t.Errorf("Identity.RefreshLeeway = %v, want %v", cfg.Identity.RefreshLeeway, 2*time.Minute)
	}

	if cfg.Backend.URL != "https://api.example.com" {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, "https://api.example.com")
	}
	if cfg.Backend.Timeout != 45*time.Second {
		t.Errorf("Backend.Timeout = %v, want %v", cfg.Backend.Timeout, 45*time.Second)
	}

	if cfg.Chat.AnonymousAllowed() {
		t.Error("Chat.AnonymousAllowed() = true, want false")
	}

	if cfg.Agents.File != "./agents.toml" {
		t.Errorf("Agents.File = %q, want %q", cfg.Agents.File, "./agents.toml")
	}
	if cfg.Audit.Path != "./audit.db" {
		t.Errorf("Audit.Path = %q, want %q", cfg.Audit.Path, "./audit.db")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_AnonymousDefaultsToAllowed(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
identity:
  url: "https://auth.example.com"
  api_key: "anon-key"

backend:
  url: "https://api.example.com"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Chat.AnonymousAllowed() {
		t.Error("Chat.AnonymousAllowed() = false, want true when unset")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("PARLEY_TEST_API_KEY", "expanded-key")

	configPath := writeConfig(t, t.TempDir(), `
identity:
  url: "https://auth.example.com"
  api_key: "${PARLEY_TEST_API_KEY}"

backend:
  url: "https://api.example.com"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Identity.APIKey != "expanded-key" {
		t.Errorf("Identity.APIKey = %q, want %q", cfg.Identity.APIKey, "expanded-key")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PARLEY_DOTENV_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	configPath := writeConfig(t, dir, `
identity:
  url: "https://auth.example.com"
  api_key: "${PARLEY_DOTENV_KEY}"

backend:
  url: "https://api.example.com"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Identity.APIKey != "from-dotenv" {
		t.Errorf("Identity.APIKey = %q, want %q", cfg.Identity.APIKey, "from-dotenv")
	}
}

func TestLoad_MissingEnvVarBecomesEmpty(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
identity:
  url: "https://auth.example.com"
  api_key: "${PARLEY_DEFINITELY_UNSET_VAR}"

backend:
  url: "https://api.example.com"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for empty api_key")
	}
	if !strings.Contains(err.Error(), "identity.api_key") {
		t.Errorf("Load() error = %v, want mention of identity.api_key", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing identity url",
			content: `
identity:
  api_key: "key"
backend:
  url: "https://api.example.com"
`,
			wantErr: "identity.url",
		},
		{
			name: "missing backend url",
			content: `
identity:
  url: "https://auth.example.com"
  api_key: "key"
`,
			wantErr: "backend.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
identity:
  url: "https://auth.example.com"
  api_key: "key"
  refresh_leeway: "not-a-duration"

backend:
  url: "https://api.example.com"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected duration parse error")
	}
	if !strings.Contains(err.Error(), "refresh_leeway") {
		t.Errorf("Load() error = %v, want mention of refresh_leeway", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}
