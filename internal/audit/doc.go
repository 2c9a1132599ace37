// Package audit keeps a local, append-only log of authentication events
// (login, signup, logout) in a SQLite database. Recording is best-effort by
// contract: callers must treat a failed Record as a logging problem, never
// as a failure of the operation being recorded.
package audit
