// ABOUTME: Chat endpoints: single-agent and multi-agent sends
// ABOUTME: Implements the conversation backend over POST /api/chat

package api

import (
	"context"
	"net/http"

	"github.com/2389/parley/internal/conversation"
)

type chatRequest struct {
	Message string `json:"message"`
	AgentID string `json:"agent_id"`
	UserID  string `json:"user_id,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id,omitempty"`
}

// Send posts one message to one agent and returns its reply. An empty
// userID sends the message anonymously; the backend then records no
// session for it.
func (c *Client) Send(ctx context.Context, text, agentID, userID string) (*conversation.Reply, error) {
	req := chatRequest{Message: text, AgentID: agentID, UserID: userID}
	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/", req, &resp); err != nil {
		return nil, err
	}
	return &conversation.Reply{
		Text:      resp.Response,
		AgentID:   resp.AgentID,
		SessionID: resp.SessionID,
	}, nil
}

type multiAgentRequest struct {
	Message  string   `json:"message"`
	AgentIDs []string `json:"agent_ids"`
	UserID   string   `json:"user_id,omitempty"`
}

type multiAgentResponse struct {
	Responses  map[string]string `json:"responses"`
	SessionIDs map[string]string `json:"session_ids"`
}

// SendMulti posts one message to several agents in a single request and
// returns the replies keyed by agent id. Agents the backend did not answer
// for are simply absent from the map.
func (c *Client) SendMulti(ctx context.Context, text string, agentIDs []string, userID string) (map[string]*conversation.Reply, error) {
	req := multiAgentRequest{Message: text, AgentIDs: agentIDs, UserID: userID}
	var resp multiAgentResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/multi-agent", req, &resp); err != nil {
		return nil, err
	}

	replies := make(map[string]*conversation.Reply, len(resp.Responses))
	for agentID, text := range resp.Responses {
		replies[agentID] = &conversation.Reply{
			Text:      text,
			AgentID:   agentID,
			SessionID: resp.SessionIDs[agentID],
		}
	}
	return replies, nil
}
