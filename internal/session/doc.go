// Package session owns the authentication state machine and the error
// classifier that stands between provider wording and the user.
//
// # State machine
//
// Status moves through four states:
//
//   - idle: constructed, no probe issued yet
//   - checking: a probe or credential operation is outstanding
//   - authenticated: carries the provider-supplied user
//   - unauthenticated: optionally carries the last classified error
//
// Transitions come from three sources: the initial probe issued by Start,
// explicit Login/Signup/Logout calls, and out-of-band provider pushes
// (token refresh, external sign-out). Each transition replaces the State
// value whole; the last event to commit wins, which matches an event-loop
// model where a push arriving after a stale login result determines what
// the user sees.
//
// Logout is idempotent and client-authoritative: the local session is
// cleared even when the provider call fails. A session that was already
// revoked server-side is expected and stays out of the error log.
//
// # Error classification
//
// ClassifyLogin and ClassifySignup are pure functions mapping raw provider
// errors (message plus optional machine code) onto a closed taxonomy with
// fixed user-facing sentences. Matching is first-match-wins over an ordered
// rule list; unmatched errors fall back to the raw message when present,
// else to a generic unknown sentence. This is the only place provider
// wording is interpreted.
package session
