// Package config handles configuration loading for parley.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. A .env file next to the config file is loaded into the
// environment first, so secrets can stay out of the YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	identity:
//	  api_key: "${PARLEY_IDENTITY_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	identity:
//	  refresh_leeway: "2m"
//	backend:
//	  timeout: "45s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Identity provider:
//
//	identity:
//	  url: "https://auth.example.com"
//	  api_key: "${PARLEY_IDENTITY_KEY}"   # Required
//	  session_cache: "~/.parley/session.json"
//	  refresh_leeway: "2m"
//
// Agent backend:
//
//	backend:
//	  url: "https://api.example.com"
//	  timeout: "45s"
//
// Chat behavior:
//
//	chat:
//	  allow_anonymous: true   # default
//
// Local agent definitions (optional; backend catalog is used when unset):
//
//	agents:
//	  file: "./agents.toml"
//
// Audit log:
//
//	audit:
//	  path: "~/.parley/audit.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() requires identity.url, identity.api_key, and backend.url, and
// rejects malformed durations.
package config
