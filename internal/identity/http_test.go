// ABOUTME: Tests for the HTTP identity provider
// ABOUTME: Covers sign-in, signup, sign-out, probe/restore, refresh, and error mapping

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signAccessToken builds an access token with the given subject and expiry.
// The provider reads claims without verifying, so any signing key works.
func signAccessToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestSignIn_Success(t *testing.T) {
	accessToken := signAccessToken(t, "user-1", "a@example.com", time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@example.com", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "anon-key")

	var pushed []*Session
	unsubscribe := p.Subscribe(func(s *Session) { pushed = append(pushed, s) })
	defer unsubscribe()

	sess, err := p.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, sess)

	// User identity comes from the JWT claims when the body omits it.
	require.NotNil(t, sess.User)
	assert.Equal(t, "user-1", sess.User.ID)
	assert.Equal(t, "a@example.com", sess.User.Email)
	assert.False(t, sess.Expired())

	// Subscribers see the new session.
	require.Len(t, pushed, 1)
	assert.Equal(t, "user-1", pushed[0].User.ID)
}

func TestSignIn_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "")
	sess, err := p.SignIn(context.Background(), "a@example.com", "wrong")
	require.Nil(t, sess)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Invalid login credentials", pe.Message)
	assert.Equal(t, "invalid_credentials", pe.Code)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
}

func TestSignIn_LegacyErrorShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "")
	_, err := p.SignIn(context.Background(), "a@example.com", "wrong")

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Invalid login credentials", pe.Message)
	assert.Equal(t, "invalid_grant", pe.Code)
}

func TestSignIn_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewHTTPProvider(srv.URL, "")
	_, err := p.SignIn(context.Background(), "a@example.com", "pw")

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "network_error", pe.Code)
	assert.Zero(t, pe.Status)
}

func TestSignUp_ConfirmationPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/signup", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": "user-2", "email": "b@example.com"},
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "")

	var pushes int
	defer p.Subscribe(func(*Session) { pushes++ })()

	sess, err := p.SignUp(context.Background(), "b@example.com", "pw")
	require.NoError(t, err)
	assert.Nil(t, sess, "no session until the email is confirmed")
	assert.Zero(t, pushes)
}

func TestSignOut_AlwaysClearsLocalState(t *testing.T) {
	accessToken := signAccessToken(t, "user-1", "a@example.com", time.Now().Add(time.Hour))

	var logoutCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  accessToken,
				"refresh_token": "refresh-1",
			})
		case "/logout":
			logoutCalls++
			require.Equal(t, "Bearer "+accessToken, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error_code":"session_not_found","msg":"Session from session_id claim in JWT does not exist"}`))
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "")
	_, err := p.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)

	var pushed []*Session
	defer p.Subscribe(func(s *Session) { pushed = append(pushed, s) })()

	err = p.SignOut(context.Background())
	require.Error(t, err)
	assert.True(t, IsSessionGone(err))
	assert.Equal(t, 1, logoutCalls)

	// Local state is gone regardless of the provider's answer.
	require.Len(t, pushed, 1)
	assert.Nil(t, pushed[0])

	sess, err := p.ProbeSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestProbeSession_RestoresFromCache(t *testing.T) {
	accessToken := signAccessToken(t, "user-3", "c@example.com", time.Now().Add(time.Hour))
	cachePath := filepath.Join(t.TempDir(), "session.json")

	// A previous run persists its session.
	first := NewHTTPProvider("http://unused.invalid", "", WithSessionCache(cachePath))
	first.setSession(first.sessionFromToken(&tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: "refresh-3",
	}), false)

	// A fresh provider restores it without touching the network.
	p := NewHTTPProvider("http://unused.invalid", "", WithSessionCache(cachePath))
	sess, err := p.ProbeSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "user-3", sess.User.ID)
}

func TestProbeSession_RefreshesExpiredCache(t *testing.T) {
	expired := signAccessToken(t, "user-4", "d@example.com", time.Now().Add(-time.Hour))
	fresh := signAccessToken(t, "user-4", "d@example.com", time.Now().Add(time.Hour))
	cachePath := filepath.Join(t.TempDir(), "session.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-4", body["refresh_token"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fresh,
			"refresh_token": "refresh-5",
		})
	}))
	defer srv.Close()

	seed := NewHTTPProvider(srv.URL, "", WithSessionCache(cachePath))
	seed.setSession(seed.sessionFromToken(&tokenResponse{
		AccessToken:  expired,
		RefreshToken: "refresh-4",
	}), false)

	p := NewHTTPProvider(srv.URL, "", WithSessionCache(cachePath))

	var pushed []*Session
	defer p.Subscribe(func(s *Session) { pushed = append(pushed, s) })()

	sess, err := p.ProbeSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "refresh-5", sess.RefreshToken)
	assert.False(t, sess.Expired())

	// The refreshed session is pushed like any other out-of-band change.
	require.Len(t, pushed, 1)
}

func TestProbeSession_RejectedRefreshMeansSignedOut(t *testing.T) {
	expired := signAccessToken(t, "user-5", "e@example.com", time.Now().Add(-time.Hour))
	cachePath := filepath.Join(t.TempDir(), "session.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"refresh_token_not_found","msg":"Invalid Refresh Token"}`))
	}))
	defer srv.Close()

	seed := NewHTTPProvider(srv.URL, "", WithSessionCache(cachePath))
	seed.setSession(seed.sessionFromToken(&tokenResponse{
		AccessToken:  expired,
		RefreshToken: "refresh-dead",
	}), false)

	p := NewHTTPProvider(srv.URL, "", WithSessionCache(cachePath))
	sess, err := p.ProbeSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStartAutoRefresh_RenewsTokenAlreadyInsideLeeway(t *testing.T) {
	// The sign-in token expires sooner than the refresh leeway, so the
	// loop must renew it right away rather than sleeping a full leeway
	// interval past its expiry.
	shortLived := signAccessToken(t, "user-6", "f@example.com", time.Now().Add(2*time.Second))
	fresh := signAccessToken(t, "user-6", "f@example.com", time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("grant_type") {
		case "password":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  shortLived,
				"refresh_token": "refresh-6",
			})
		case "refresh_token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  fresh,
				"refresh_token": "refresh-7",
			})
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "")

	var mu sync.Mutex
	var pushed []*Session
	defer p.Subscribe(func(s *Session) {
		mu.Lock()
		pushed = append(pushed, s)
		mu.Unlock()
	})()

	_, err := p.SignIn(context.Background(), "f@example.com", "pw")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartAutoRefresh(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range pushed {
			if s != nil && s.RefreshToken == "refresh-7" {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond, "short-lived token was not refreshed promptly")
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	p := NewHTTPProvider("http://unused.invalid", "")

	var calls int
	unsubscribe := p.Subscribe(func(*Session) { calls++ })

	p.subs.notify(nil)
	unsubscribe()
	p.subs.notify(nil)
	unsubscribe() // second call is a no-op

	assert.Equal(t, 1, calls)
}

func TestIsSessionGone(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", assert.AnError, false},
		{"by code", &ProviderError{Code: "session_not_found"}, true},
		{"by message", &ProviderError{Message: "Session from session_id claim in JWT does not exist"}, true},
		{"other provider error", &ProviderError{Message: "rate limit exceeded"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSessionGone(tt.err))
		})
	}
}
