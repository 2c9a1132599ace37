// ABOUTME: HTTP implementation of the identity Provider against a GoTrue-style REST API
// ABOUTME: Password grant, signup, logout and token refresh with session-change push

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTimeout = 15 * time.Second

	// defaultRefreshLeeway is how long before access-token expiry the
	// auto-refresh loop renews the session.
	defaultRefreshLeeway = 60 * time.Second

	// minRefreshWait keeps the refresh loop from spinning when a token is
	// already inside its leeway window.
	minRefreshWait = time.Second
)

// HTTPProvider talks to a GoTrue-style identity API (password grant, signup,
// logout, refresh). It caches the current session on disk and pushes
// session changes to subscribers, including changes it discovers on its own
// (token refresh, server-side revocation).
type HTTPProvider struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *slog.Logger
	cache   *sessionCache
	leeway  time.Duration

	subs *subscribers

	mu      sync.Mutex
	current *Session
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.httpc = c }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(p *HTTPProvider) { p.logger = l }
}

// WithSessionCache persists the token set at the given path so a restarted
// client can restore its session. Empty path disables caching.
func WithSessionCache(path string) HTTPOption {
	return func(p *HTTPProvider) { p.cache = &sessionCache{path: path} }
}

// WithRefreshLeeway sets how long before expiry the auto-refresh loop runs.
func WithRefreshLeeway(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		if d > 0 {
			p.leeway = d
		}
	}
}

// NewHTTPProvider creates a provider for the given base URL. The API key is
// sent as the apikey header on every request; pass "" if the deployment
// does not require one.
func NewHTTPProvider(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
		leeway:  defaultRefreshLeeway,
		subs:    newSubscribers(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "identity")
	return p
}

// tokenResponse is the JSON body returned by the token and signup endpoints.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user"`
}

// providerErrorBody covers the error shapes GoTrue deployments emit. Older
// versions use error/error_description, newer ones msg/error_code.
type providerErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Code             any    `json:"code"` // numeric in some versions, string in others
}

// ProbeSession restores the current session, consulting the on-disk cache
// and refreshing an expired token set. Returns (nil, nil) when there is
// nothing to restore.
func (p *HTTPProvider) ProbeSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current != nil && !current.Expired() {
		return current, nil
	}

	if current == nil {
		cached, err := p.cache.load()
		if err != nil {
			p.logger.Warn("session cache unreadable, starting signed out", "error", err)
			return nil, nil
		}
		current = cached
	}
	if current == nil {
		return nil, nil
	}

	if !current.Expired() {
		p.setSession(current, false)
		return current, nil
	}

	if current.RefreshToken == "" {
		p.dropSession(false)
		return nil, nil
	}

	sess, err := p.refresh(ctx, current.RefreshToken)
	if err != nil {
		// A rejected refresh token means the session is gone for good.
		// Transport failures are surfaced so the caller can report them.
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status > 0 {
			p.dropSession(false)
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// SignIn exchanges credentials for a session via the password grant.
func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := p.post(ctx, "/token?grant_type=password", body, "")
	if err != nil {
		return nil, err
	}

	sess := p.sessionFromToken(resp)
	p.setSession(sess, true)
	return sess, nil
}

// SignUp registers a new account. Deployments that require email
// confirmation return no token set; in that case SignUp returns (nil, nil)
// and the caller stays signed out until the user confirms and signs in.
func (p *HTTPProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := p.post(ctx, "/signup", body, "")
	if err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		p.logger.Info("signup accepted, confirmation pending", "email", email)
		return nil, nil
	}

	sess := p.sessionFromToken(resp)
	p.setSession(sess, true)
	return sess, nil
}

// SignOut revokes the session server-side and always clears local state,
// notifying subscribers, regardless of the outcome of the provider call.
func (p *HTTPProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	var signOutErr error
	if current != nil && current.AccessToken != "" {
		_, signOutErr = p.post(ctx, "/logout", nil, current.AccessToken)
	}

	p.dropSession(true)
	return signOutErr
}

// Subscribe registers a session-change callback and returns its
// unsubscribe function.
func (p *HTTPProvider) Subscribe(fn func(*Session)) func() {
	return p.subs.add(fn)
}

// AccessToken returns the current bearer token, or "" when signed out.
func (p *HTTPProvider) AccessToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.AccessToken
}

// StartAutoRefresh renews the token set shortly before expiry until ctx is
// cancelled. Refreshed sessions and discovered revocations are pushed to
// subscribers, which is how an idle client learns about external sign-out.
func (p *HTTPProvider) StartAutoRefresh(ctx context.Context) {
	go func() {
		for {
			p.mu.Lock()
			current := p.current
			p.mu.Unlock()

			// With no session (or no known expiry) poll at the leeway
			// interval; otherwise sleep until leeway before expiry. A
			// token already inside the leeway window is refreshed almost
			// immediately instead of waiting a full interval.
			wait := p.leeway
			if current != nil && !current.ExpiresAt.IsZero() {
				wait = time.Until(current.ExpiresAt) - p.leeway
				if wait < minRefreshWait {
					wait = minRefreshWait
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			p.mu.Lock()
			current = p.current
			p.mu.Unlock()
			if current == nil || current.RefreshToken == "" {
				continue
			}

			if _, err := p.refresh(ctx, current.RefreshToken); err != nil {
				var pe *ProviderError
				if errors.As(err, &pe) && pe.Status > 0 {
					p.logger.Info("refresh token rejected, session ended", "error", err)
					p.dropSession(true)
					continue
				}
				p.logger.Warn("token refresh failed, will retry", "error", err)
			}
		}
	}()
}

// refresh exchanges a refresh token for a new session and pushes it to
// subscribers on success.
func (p *HTTPProvider) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	resp, err := p.post(ctx, "/token?grant_type=refresh_token", body, "")
	if err != nil {
		return nil, err
	}

	sess := p.sessionFromToken(resp)
	p.setSession(sess, true)
	p.logger.Debug("session refreshed", "expires_at", sess.ExpiresAt)
	return sess, nil
}

// sessionFromToken builds a Session from a token response, filling user
// identity and expiry from the JWT claims when the response omits them.
func (p *HTTPProvider) sessionFromToken(resp *tokenResponse) *Session {
	sess := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if resp.ExpiresIn > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err != nil {
		p.logger.Debug("access token claims unreadable", "error", err)
		return sess
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}
	if sess.User == nil {
		sub, _ := claims.GetSubject()
		if sub != "" {
			email, _ := claims["email"].(string)
			sess.User = &User{ID: sub, Email: email}
		}
	}
	return sess
}

// setSession commits a session as current, persists it, and optionally
// notifies subscribers.
func (p *HTTPProvider) setSession(sess *Session, notify bool) {
	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()

	if err := p.cache.save(sess); err != nil {
		p.logger.Warn("failed to persist session cache", "error", err)
	}
	if notify {
		p.subs.notify(sess)
	}
}

// dropSession clears the current session and cache.
func (p *HTTPProvider) dropSession(notify bool) {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	if err := p.cache.clear(); err != nil {
		p.logger.Warn("failed to clear session cache", "error", err)
	}
	if notify {
		p.subs.notify(nil)
	}
}

// post issues a JSON POST to the identity API and decodes the token
// response. Non-2xx responses become ProviderErrors; transport failures
// become ProviderErrors with the network_error code so the classifier can
// recognize them.
func (p *HTTPProvider) post(ctx context.Context, path string, body any, bearer string) (*tokenResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, &ProviderError{Message: err.Error(), Code: "network_error"}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{Message: err.Error(), Code: "network_error"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeProviderError(resp.StatusCode, data)
	}

	var tok tokenResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &tok); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return &tok, nil
}

// decodeProviderError maps an error response body to a ProviderError,
// tolerating the different shapes GoTrue versions emit.
func decodeProviderError(status int, data []byte) *ProviderError {
	var body providerErrorBody
	_ = json.Unmarshal(data, &body)

	msg := body.Msg
	if msg == "" {
		msg = body.ErrorDescription
	}
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = "identity provider returned status " + strconv.Itoa(status)
	}

	code := body.ErrorCode
	if code == "" {
		if s, ok := body.Code.(string); ok {
			code = s
		}
	}
	if code == "" && body.ErrorDescription != "" {
		code = body.Error
	}

	return &ProviderError{Message: msg, Code: code, Status: status}
}
