// ABOUTME: Entry point for the parley terminal chat client
// ABOUTME: Loads config, wires identity/backend/conversation, runs the REPL

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/parley/internal/api"
	"github.com/2389/parley/internal/audit"
	"github.com/2389/parley/internal/config"
	"github.com/2389/parley/internal/conversation"
	"github.com/2389/parley/internal/directory"
	"github.com/2389/parley/internal/identity"
	"github.com/2389/parley/internal/session"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the parley config file.
// Priority: PARLEY_CONFIG env var > XDG_CONFIG_HOME/parley/config.yaml > ~/.config/parley/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "config.yaml")
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}

func main() {
	configPath := flag.String("config", getConfigPath(), "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("parley %s\n", version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Debug("starting parley",
		"config", configPath,
		"identity_url", cfg.Identity.URL,
		"backend_url", cfg.Backend.URL,
	)

	// Identity provider with on-disk session cache and auto-refresh
	providerOpts := []identity.HTTPOption{identity.WithLogger(logger)}
	if cfg.Identity.SessionCache != "" {
		providerOpts = append(providerOpts, identity.WithSessionCache(expandHome(cfg.Identity.SessionCache)))
	}
	if cfg.Identity.RefreshLeeway > 0 {
		providerOpts = append(providerOpts, identity.WithRefreshLeeway(cfg.Identity.RefreshLeeway))
	}
	provider := identity.NewHTTPProvider(cfg.Identity.URL, cfg.Identity.APIKey, providerOpts...)
	provider.StartAutoRefresh(ctx)

	// Local audit log, optional
	var recorder session.AuditRecorder
	if cfg.Audit.Path != "" {
		store, err := audit.New(expandHome(cfg.Audit.Path), logger)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	sessions := session.NewManager(provider, recorder, logger)
	sessions.Start(ctx)
	defer sessions.Dispose()

	// Backend client, authenticated with the provider's current token
	clientOpts := []api.Option{
		api.WithLogger(logger),
		api.WithTokenSource(provider.AccessToken),
	}
	if cfg.Backend.Timeout > 0 {
		clientOpts = append(clientOpts, api.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}))
	}
	client := api.NewClient(cfg.Backend.URL, clientOpts...)

	// Agent catalog: local TOML file when configured, backend otherwise
	var lister directory.Lister = client
	if cfg.Agents.File != "" {
		lister = &directory.FileLister{Path: expandHome(cfg.Agents.File)}
	}
	agents := directory.New(lister, logger)

	conversations := conversation.NewManager(client, sessions,
		conversation.WithLogger(logger),
		conversation.WithAnonymousSends(cfg.Chat.AnonymousAllowed()))

	repl := &repl{
		sessions:      sessions,
		conversations: conversations,
		agents:        agents,
		client:        client,
	}
	return repl.run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			out:   os.Stderr,
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
// Logs go to stderr so they never interleave with the prompt. Groups are
// flattened into dotted attr key prefixes.
type colorHandler struct {
	mu     sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs were qualified when added (WithAttrs); record
	// attrs get the current group prefix here.
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	prefix := h.groupPrefix()
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(h.out, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	prefix := h.groupPrefix()
	for _, a := range attrs {
		a.Key = prefix + a.Key
		newAttrs = append(newAttrs, a)
	}
	return &colorHandler{
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func (h *colorHandler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}
