// ABOUTME: Conversation state manager with anchor-relative reply insertion
// ABOUTME: Tracks per-agent message logs and in-flight exchanges that may race

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a log entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is one append-only log entry. Entries are never mutated; Clear
// replaces the whole log.
type Message struct {
	ID        string
	Content   string
	Sender    Role
	Timestamp time.Time
	AgentID   string
}

// Reply is the backend's answer to one sent message.
type Reply struct {
	Text      string
	AgentID   string
	SessionID string
}

// Backend is the chat capability the manager consumes.
type Backend interface {
	Send(ctx context.Context, text, agentID, userID string) (*Reply, error)
	SendMulti(ctx context.Context, text string, agentIDs []string, userID string) (map[string]*Reply, error)
}

// UserSource supplies the current user id for tagging outgoing requests.
// An empty id means no user is signed in.
type UserSource interface {
	UserID() string
}

// Local validation errors, rejected before any network call.
var (
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrNoAgent          = errors.New("no agent selected")
	ErrNotAuthenticated = errors.New("not signed in")
)

// SendError is a per-send backend failure. The user's own message stays in
// the log; no reply is appended.
type SendError struct {
	Sentence string
	Raw      error
}

func (e *SendError) Error() string { return e.Sentence }

func (e *SendError) Unwrap() error { return e.Raw }

const sendFailedSentence = "Failed to send message. Please try again."

// Manager owns the per-agent message logs and the bookkeeping for exchanges
// that are still waiting on the backend. Multiple sends may be in flight at
// once; there is no serialization of backend calls. Ordering is guaranteed
// by anchoring: the user message is appended synchronously when the send is
// submitted, and the eventual reply is inserted immediately after that
// anchor's position at resolution time, wherever the log has grown in the
// meantime.
type Manager struct {
	backend        Backend
	users          UserSource
	logger         *slog.Logger
	allowAnonymous bool

	mu          sync.Mutex
	logs        map[string][]Message
	gen         map[string]uint64
	outstanding map[string]int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithAnonymousSends controls whether a send may proceed without a signed-in
// user. When allowed, the request goes out with an empty user id and the
// backend records nothing against an account.
func WithAnonymousSends(allowed bool) Option {
	return func(m *Manager) { m.allowAnonymous = allowed }
}

// NewManager creates a conversation manager. users may be nil, which is
// treated as "no user signed in".
func NewManager(backend Backend, users UserSource, opts ...Option) *Manager {
	m := &Manager{
		backend:        backend,
		users:          users,
		logger:         slog.Default(),
		allowAnonymous: true,
		logs:           make(map[string][]Message),
		gen:            make(map[string]uint64),
		outstanding:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "conversation")
	return m
}

// exchange correlates a submitted user message with its pending reply. The
// generation is the conversation's value at submission; Clear bumps it, so
// a late resolution from before the clear becomes a no-op.
type exchange struct {
	agentID  string
	anchorID string
	gen      uint64
}

// Send submits text to one agent and blocks until the reply is reconciled
// into the log. The user message is appended synchronously before the
// backend call, so concurrent callers observe anchors in submission order.
// On backend failure the user message stays, no reply is appended, and a
// *SendError is returned. A reply arriving after Clear is dropped and Send
// returns (nil, nil).
func (m *Manager) Send(ctx context.Context, agentID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if agentID == "" {
		return nil, ErrNoAgent
	}

	userID := m.currentUserID()
	if userID == "" && !m.allowAnonymous {
		return nil, ErrNotAuthenticated
	}

	ex := m.open(agentID, text)

	reply, err := m.backend.Send(ctx, text, agentID, userID)
	if err != nil {
		m.abandon(ex)
		m.logger.Warn("send failed", "agent_id", agentID, "error", err)
		return nil, &SendError{Sentence: sendFailedSentence, Raw: err}
	}

	msg, ok := m.resolve(ex, reply.Text)
	if !ok {
		m.logger.Debug("reply for cleared conversation dropped", "agent_id", agentID)
		return nil, nil
	}
	return msg, nil
}

// SendMulti submits the same text to several agents in one backend call,
// opening one anchored exchange per agent so each agent's log keeps its own
// ordering guarantee. Agents missing from the backend response keep only
// the user message. Returns the reply message per agent.
func (m *Manager) SendMulti(ctx context.Context, agentIDs []string, text string) (map[string]*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(agentIDs) == 0 {
		return nil, ErrNoAgent
	}

	userID := m.currentUserID()
	if userID == "" && !m.allowAnonymous {
		return nil, ErrNotAuthenticated
	}

	exchanges := make([]exchange, 0, len(agentIDs))
	for _, agentID := range agentIDs {
		exchanges = append(exchanges, m.open(agentID, text))
	}

	replies, err := m.backend.SendMulti(ctx, text, agentIDs, userID)
	if err != nil {
		for _, ex := range exchanges {
			m.abandon(ex)
		}
		m.logger.Warn("multi-agent send failed", "agents", len(agentIDs), "error", err)
		return nil, &SendError{Sentence: sendFailedSentence, Raw: err}
	}

	out := make(map[string]*Message)
	for _, ex := range exchanges {
		reply := replies[ex.agentID]
		if reply == nil {
			m.abandon(ex)
			continue
		}
		if msg, ok := m.resolve(ex, reply.Text); ok {
			out[ex.agentID] = msg
		}
	}
	return out, nil
}

// Messages returns a copy of the log for the given agent, in order.
func (m *Manager) Messages(agentID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logs[agentID]
	out := make([]Message, len(log))
	copy(out, log)
	return out
}

// Busy reports whether at least one exchange is outstanding for the agent.
func (m *Manager) Busy(agentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outstanding[agentID] > 0
}

// Clear empties the agent's log and invalidates every outstanding exchange
// for it. In-flight backend calls are not cancelled; their late results are
// dropped when they try to resolve against a newer generation.
func (m *Manager) Clear(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[agentID] = nil
	m.gen[agentID]++
	m.outstanding[agentID] = 0
}

// open appends the anchor user message and registers the exchange.
func (m *Manager) open(agentID, text string) exchange {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{
		ID:        uuid.New().String(),
		Content:   text,
		Sender:    RoleUser,
		Timestamp: time.Now(),
		AgentID:   agentID,
	}
	m.logs[agentID] = append(m.logs[agentID], msg)
	m.outstanding[agentID]++

	return exchange{agentID: agentID, anchorID: msg.ID, gen: m.gen[agentID]}
}

// resolve inserts the reply immediately after the exchange's anchor. The
// anchor's index is looked up at resolution time: replies of later sends
// that already resolved sit after their own anchors further down, so
// inserting at anchor+1 keeps every question/answer pair adjacent no matter
// the order in which responses arrive. Returns false when the conversation
// was cleared since the exchange opened.
func (m *Manager) resolve(ex exchange, text string) (*Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen[ex.agentID] != ex.gen {
		return nil, false
	}
	m.outstanding[ex.agentID]--

	log := m.logs[ex.agentID]
	idx := -1
	for i := range log {
		if log[i].ID == ex.anchorID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false
	}

	msg := Message{
		ID:        uuid.New().String(),
		Content:   text,
		Sender:    RoleAgent,
		Timestamp: time.Now(),
		AgentID:   ex.agentID,
	}

	log = append(log, Message{})
	copy(log[idx+2:], log[idx+1:])
	log[idx+1] = msg
	m.logs[ex.agentID] = log

	return &msg, true
}

// abandon closes an exchange without a reply.
func (m *Manager) abandon(ex exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen[ex.agentID] == ex.gen && m.outstanding[ex.agentID] > 0 {
		m.outstanding[ex.agentID]--
	}
}

func (m *Manager) currentUserID() string {
	if m.users == nil {
		return ""
	}
	return m.users.UserID()
}
