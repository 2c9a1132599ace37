// Package identity wraps the third-party identity provider behind a small
// capability interface.
//
// # Overview
//
// The Provider interface is the only surface the rest of the client sees:
// probe the current session, sign in, sign up, sign out, and subscribe to
// session-change notifications. Everything vendor-specific (endpoint paths,
// error body shapes, token refresh) lives behind it, which keeps the auth
// state machine testable against a fake.
//
// # HTTP implementation
//
// HTTPProvider targets a GoTrue-style REST API:
//
//   - POST /token?grant_type=password       sign in
//   - POST /signup                          register
//   - POST /logout                          revoke the session
//   - POST /token?grant_type=refresh_token  renew the token set
//
// User identity and token expiry are taken from the access token's JWT
// claims when the response body omits them. The token set is cached on disk
// (owner-only permissions) so ProbeSession can restore a session after a
// restart; this mirrors what browser SDKs keep in local storage.
//
// # Push notifications
//
// Subscribers receive the new Session (or nil on sign-out) whenever the
// provider's view changes: sign-in, sign-up, sign-out, token refresh, and
// refresh-token rejection discovered by the StartAutoRefresh loop.
//
// # Errors
//
// Provider failures are returned as *ProviderError carrying the raw vendor
// message plus an optional machine code. The wording is unstable across
// provider versions; display decisions belong to the session classifier,
// not to callers of this package.
package identity
