// ABOUTME: Identity provider types and the capability interface the client consumes
// ABOUTME: Defines Session, User, ProviderError and the Provider contract

package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// User is the provider-supplied identity. ID is stable for the lifetime of
// the account and is the only field the rest of the client relies on.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one authenticated session as reported by the provider.
// Values are immutable once returned; a refresh produces a new Session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired() bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// ProviderError is a raw error from the identity provider: a human-readable
// message plus an optional machine code. The wording is vendor-specific and
// unstable; callers should classify it rather than display it directly.
type ProviderError struct {
	Message string
	Code    string
	Status  int // HTTP status, 0 for transport-level failures
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return e.Message + " (" + e.Code + ")"
	}
	return e.Message
}

// IsSessionGone reports whether err is the provider telling us the session
// was already revoked server-side. Sign-out treats this as success.
func IsSessionGone(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Code == "session_not_found" {
		return true
	}
	return strings.Contains(strings.ToLower(pe.Message), "session from session_id claim")
}

// Provider is the identity capability set the client consumes. ProbeSession
// returns (nil, nil) when the provider has no session to restore.
//
// Subscribe registers a callback invoked whenever the provider's view of the
// session changes out of band (sign-in, token refresh, revocation). The
// callback receives nil when the session ends. The returned function removes
// the subscription.
type Provider interface {
	ProbeSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(*Session)) (unsubscribe func())
}
