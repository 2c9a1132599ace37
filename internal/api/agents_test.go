// ABOUTME: Tests for the agent catalog endpoint
// ABOUTME: Verifies decoding of the backend's persona list

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAgents(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":            "startup_advisor",
				"name":          "Startup Advisor",
				"description":   "Expert guidance for entrepreneurs",
				"system_prompt": "You are an experienced startup advisor.",
				"tools":         []string{"market_research", "financial_modeling"},
				"workflow":      "startup_guidance",
			},
			{
				"id":          "content_strategist",
				"name":        "Content Strategist",
				"description": "Strategic content planning",
			},
		})
	}))
	defer server.Close()

	agents, err := NewClient(server.URL).ListAgents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/agents/", gotPath)
	require.Len(t, agents, 2)
	assert.Equal(t, "startup_advisor", agents[0].ID)
	assert.Equal(t, []string{"market_research", "financial_modeling"}, agents[0].Tools)
	assert.Equal(t, "startup_guidance", agents[0].Workflow)
	assert.Empty(t, agents[1].Tools)
}

func TestListAgents_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "catalog unavailable"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).ListAgents(context.Background())

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.Status)
}
