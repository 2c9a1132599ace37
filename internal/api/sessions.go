// ABOUTME: Remote session history endpoints
// ABOUTME: Listing per user or per user+agent, and deleting one session

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SessionRecord is one stored exchange: the user's query and the agent's
// response, as the backend persisted them.
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionsResponse struct {
	Sessions []SessionRecord `json:"sessions"`
}

// ListUserSessions returns the user's stored sessions, newest first.
// limit <= 0 means the backend's default.
func (c *Client) ListUserSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error) {
	path := "/api/sessions/user/" + url.PathEscape(userID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp sessionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// ListUserAgentSessions returns the user's sessions with one agent,
// newest first. limit <= 0 means the backend's default.
func (c *Client) ListUserAgentSessions(ctx context.Context, userID, agentID string, limit int) ([]SessionRecord, error) {
	path := "/api/sessions/user/" + url.PathEscape(userID) + "/agent/" + url.PathEscape(agentID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp sessionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// DeleteSession removes one stored session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(sessionID), nil, nil)
}
