// ABOUTME: Auth state machine reconciling provider events into one visible status
// ABOUTME: Login, signup, and idempotent logout with best-effort audit recording

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/parley/internal/identity"
)

// Status is the visible authentication status.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusChecking        Status = "checking"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// State is the client's current view of authentication. Every transition
// replaces the whole value; fields are never mutated in place, so a reader
// always sees one consistent snapshot.
type State struct {
	Status    Status
	User      *identity.User
	LastError *AuthError
}

// AuditRecorder receives best-effort audit entries. A failing recorder must
// never affect the operation being recorded.
type AuditRecorder interface {
	Record(ctx context.Context, userID, kind, detail string) error
}

// Manager owns the authentication state machine. It reconciles the initial
// session probe, explicit login/signup/logout, and out-of-band provider
// pushes into one consistent State; the last event to commit wins.
type Manager struct {
	provider identity.Provider
	audit    AuditRecorder
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	unsubscribe func()
}

// NewManager creates a manager in the idle state. audit may be nil.
// Pass nil logger for the default.
func NewManager(provider identity.Provider, audit AuditRecorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		provider: provider,
		audit:    audit,
		logger:   logger.With("component", "session"),
		state:    State{Status: StatusIdle},
	}
}

// Start subscribes to provider session changes and issues the initial
// session probe. A probe that finds no session leaves the manager
// unauthenticated with no error; a probe failure records the classified
// error. Start is synchronous; callers wanting a non-blocking start run it
// in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.unsubscribe == nil {
		m.unsubscribe = m.provider.Subscribe(m.applySessionChange)
	}
	m.state = State{Status: StatusChecking, User: m.state.User}
	m.mu.Unlock()

	sess, err := m.provider.ProbeSession(ctx)
	switch {
	case err != nil:
		classified := classifyErr(err, ClassifyLogin, loginUnknownSentence)
		m.logger.Warn("session probe failed", "error", err)
		m.replace(State{Status: StatusUnauthenticated, LastError: classified})
	case sess != nil && sess.User != nil:
		m.replace(State{Status: StatusAuthenticated, User: sess.User})
	default:
		m.replace(State{Status: StatusUnauthenticated})
	}
}

// Dispose tears down the provider subscription. The manager can be started
// again afterwards.
func (m *Manager) Dispose() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Login exchanges credentials for a session. Empty fields are rejected
// locally before any provider call. Provider failures are classified,
// recorded as LastError, and returned; Login never panics on provider
// misbehavior. The result always carries either the new user or an
// AuthError: a provider that returns a session without a user is treated
// as an unknown failure, not a success. A successful login appends a
// best-effort audit entry.
func (m *Manager) Login(ctx context.Context, email, password string) (*identity.User, error) {
	if email == "" || password == "" {
		return nil, errMissingCredentials()
	}

	m.beginChecking()

	sess, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		classified := classifyErr(err, ClassifyLogin, loginUnknownSentence)
		m.replace(State{Status: StatusUnauthenticated, LastError: classified})
		return nil, classified
	}
	if sess == nil || sess.User == nil {
		classified := &AuthError{Kind: KindUnknown, Sentence: loginUnknownSentence}
		m.replace(State{Status: StatusUnauthenticated, LastError: classified})
		return nil, classified
	}

	m.replace(State{Status: StatusAuthenticated, User: sess.User})
	m.recordAudit(ctx, sess.User.ID, "login", "user logged in")
	return sess.User, nil
}

// Signup registers a new account. The contract matches Login, with the
// signup error taxonomy and a distinct audit entry. A provider that defers
// the session until email confirmation yields (nil, nil) and an
// unauthenticated state with no error.
func (m *Manager) Signup(ctx context.Context, email, password string) (*identity.User, error) {
	if email == "" || password == "" {
		return nil, errMissingCredentials()
	}

	m.beginChecking()

	sess, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		classified := classifyErr(err, ClassifySignup, signupUnknownSentence)
		m.replace(State{Status: StatusUnauthenticated, LastError: classified})
		return nil, classified
	}
	if sess == nil || sess.User == nil {
		m.replace(State{Status: StatusUnauthenticated})
		return nil, nil
	}

	m.replace(State{Status: StatusAuthenticated, User: sess.User})
	m.recordAudit(ctx, sess.User.ID, "signup", "user signed up")
	return sess.User, nil
}

// Logout ends the session. It always succeeds from the caller's point of
// view: the local state becomes unauthenticated with no user and no error
// even when the provider call fails. A session that was already revoked
// server-side is expected and logged quietly; any other provider failure is
// reported to the log.
func (m *Manager) Logout(ctx context.Context) {
	userID := m.UserID()
	m.beginChecking()

	if err := m.provider.SignOut(ctx); err != nil {
		if identity.IsSessionGone(err) {
			m.logger.Debug("session already gone at sign-out", "error", err)
		} else {
			m.logger.Error("sign-out failed, clearing local session anyway", "error", err)
		}
	}

	m.replace(State{Status: StatusUnauthenticated})
	m.recordAudit(ctx, userID, "logout", "user logged out")
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UserID returns the authenticated user's id, or "" when signed out.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.User == nil {
		return ""
	}
	return m.state.User.ID
}

// applySessionChange handles a provider push. Pushes are applied
// unconditionally: an external sign-out or token refresh wins over whatever
// operation happens to be in flight, because it commits later.
func (m *Manager) applySessionChange(sess *identity.Session) {
	if sess != nil && sess.User != nil {
		m.replace(State{Status: StatusAuthenticated, User: sess.User})
		return
	}
	m.replace(State{Status: StatusUnauthenticated})
}

// beginChecking moves to checking while keeping the current user visible
// until the outcome is known.
func (m *Manager) beginChecking() {
	m.mu.Lock()
	m.state = State{Status: StatusChecking, User: m.state.User}
	m.mu.Unlock()
}

// replace commits a new state as a whole-value swap.
func (m *Manager) replace(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// recordAudit appends an audit entry, swallowing failures.
func (m *Manager) recordAudit(ctx context.Context, userID, kind, detail string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Record(ctx, userID, kind, detail); err != nil {
		m.logger.Debug("audit record failed", "kind", kind, "error", err)
	}
}

// classifyErr routes provider errors through the given classifier; anything
// that is not a ProviderError becomes an unknown-case AuthError.
func classifyErr(err error, classifier func(*identity.ProviderError) *AuthError, unknownSentence string) *AuthError {
	var pe *identity.ProviderError
	if errors.As(err, &pe) {
		return classifier(pe)
	}
	return &AuthError{Kind: KindUnknown, Sentence: unknownSentence, Raw: err}
}
