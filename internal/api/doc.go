// Package api is the HTTP client for the agent backend.
//
// # Endpoints
//
// The backend serves JSON under an /api prefix:
//
//   - POST /api/chat/ sends one message to one agent
//   - POST /api/chat/multi-agent fans one message out to several agents
//   - GET /api/agents/ lists the agent catalog
//   - GET /api/sessions/user/{id} lists a user's stored sessions
//   - GET /api/sessions/user/{id}/agent/{agent} narrows to one agent
//   - DELETE /api/sessions/{id} removes one stored session
//
// # Errors
//
// Transport failures surface as wrapped errors; non-2xx responses become a
// *BackendError carrying the status and the backend's detail string.
//
// # Authentication
//
// A TokenSource supplies the current bearer token per request. Requests
// with no token go out unauthenticated, which the backend accepts for
// anonymous chat.
package api
