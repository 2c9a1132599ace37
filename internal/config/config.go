// ABOUTME: Configuration loading and parsing for parley
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete parley configuration
type Config struct {
	Identity IdentityConfig `yaml:"identity"`
	Backend  BackendConfig  `yaml:"backend"`
	Chat     ChatConfig     `yaml:"chat"`
	Agents   AgentsConfig   `yaml:"agents"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// IdentityConfig holds identity provider configuration
type IdentityConfig struct {
	URL          string `yaml:"url"`
	APIKey       string `yaml:"api_key"`
	SessionCache string `yaml:"session_cache"`

	RefreshLeeway time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RefreshLeewayRaw string `yaml:"refresh_leeway"`
}

// BackendConfig holds agent backend configuration
type BackendConfig struct {
	URL string `yaml:"url"`

	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// ChatConfig holds chat behavior configuration
type ChatConfig struct {
	// AllowAnonymous permits sending messages without a signed-in user.
	// Anonymous sends are not recorded against any account.
	AllowAnonymous *bool `yaml:"allow_anonymous"`
}

// AgentsConfig points at an optional local agent definitions file. When
// empty, the agent catalog comes from the backend.
type AgentsConfig struct {
	File string `yaml:"file"`
}

// AuditConfig holds the local audit log configuration
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AnonymousAllowed reports the effective allow_anonymous setting; unset
// means allowed.
func (c *ChatConfig) AnonymousAllowed() bool {
	return c.AllowAnonymous == nil || *c.AllowAnonymous
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file next to the config file is loaded first, if present.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	// Best-effort: a missing .env is fine
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Identity.URL == "" {
		return fmt.Errorf("identity.url is required")
	}
	if c.Identity.APIKey == "" {
		return fmt.Errorf("identity.api_key is required")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Identity.RefreshLeewayRaw != "" {
		cfg.Identity.RefreshLeeway, err = time.ParseDuration(cfg.Identity.RefreshLeewayRaw)
		if err != nil {
			return fmt.Errorf("parsing refresh_leeway %q: %w", cfg.Identity.RefreshLeewayRaw, err)
		}
	}

	if cfg.Backend.TimeoutRaw != "" {
		cfg.Backend.Timeout, err = time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
	}

	return nil
}
