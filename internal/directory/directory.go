// ABOUTME: Agent directory with a load-once cache over a pluggable lister
// ABOUTME: Lookup by id, explicit refresh, no background revalidation

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Agent describes one assistant the backend can route messages to.
type Agent struct {
	ID           string   `toml:"id" json:"id"`
	Name         string   `toml:"name" json:"name"`
	Description  string   `toml:"description" json:"description"`
	SystemPrompt string   `toml:"system_prompt" json:"system_prompt,omitempty"`
	Tools        []string `toml:"tools" json:"tools,omitempty"`
	Workflow     string   `toml:"workflow" json:"workflow,omitempty"`
}

// Lister fetches the available agents from wherever they are defined.
type Lister interface {
	ListAgents(ctx context.Context) ([]Agent, error)
}

// ErrNotFound is returned by Get for an unknown agent id.
var ErrNotFound = errors.New("agent not found")

// Directory caches the agent list after the first successful load. The list
// is assumed stable for the life of the process; Refresh forces a re-fetch.
type Directory struct {
	lister Lister
	logger *slog.Logger

	mu     sync.Mutex
	agents []Agent
	loaded bool
}

// New creates a directory over the given lister. Pass nil logger for the
// default.
func New(lister Lister, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		lister: lister,
		logger: logger.With("component", "directory"),
	}
}

// List returns the agents, fetching them on first use. A failed fetch is
// not cached; the next call tries again.
func (d *Directory) List(ctx context.Context) ([]Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listLocked(ctx)
}

// Refresh discards the cache and fetches the list again.
func (d *Directory) Refresh(ctx context.Context) ([]Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	d.agents = nil
	return d.listLocked(ctx)
}

// Get returns the agent with the given id, loading the list if needed.
func (d *Directory) Get(ctx context.Context, id string) (*Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	agents, err := d.listLocked(ctx)
	if err != nil {
		return nil, err
	}
	for i := range agents {
		if agents[i].ID == id {
			agent := agents[i]
			return &agent, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (d *Directory) listLocked(ctx context.Context) ([]Agent, error) {
	if d.loaded {
		return d.agents, nil
	}

	agents, err := d.lister.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	d.agents = agents
	d.loaded = true
	d.logger.Debug("agent list loaded", "count", len(agents))
	return d.agents, nil
}
