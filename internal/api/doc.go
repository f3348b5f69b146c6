// Package api defines the wire-format types of the daemon's HTTP API and a
// small client for them.
//
// # Key Types
//
// StartSessionRequest/StartSessionResponse: session creation with optional
// capacity, policy and threshold overrides.
//
// SubmitResponse: the decision (when one was emitted), the zoom hint for the
// observation's source and the session state after the observation.
//
// DaemonStatus: running state, run id, lock and history paths, session
// counts and the defaults new sessions start from.
//
// # Client
//
// Client speaks to a running daemon over HTTP with an optional bearer
// token. Non-2xx replies surface as *StatusError so callers can branch on
// the status code with errors.As.
//
// # Design Notes
//
// Payloads use snake_case JSON tags, matching the observation format the
// recorders write. Session and history types are reused as-is rather than
// copied into transport DTOs.
package api
