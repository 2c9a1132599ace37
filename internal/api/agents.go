// ABOUTME: Agent catalog endpoint
// ABOUTME: Implements the directory lister over GET /api/agents

package api

import (
	"context"
	"net/http"

	"github.com/2389/parley/internal/directory"
)

// ListAgents fetches the backend's agent catalog.
func (c *Client) ListAgents(ctx context.Context) ([]directory.Agent, error) {
	var agents []directory.Agent
	if err := c.do(ctx, http.MethodGet, "/api/agents/", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}
