// Package session runs one VIN scanning attempt from start to decision or
// cancellation, and manages many of them behind opaque handles.
//
// A Session owns exactly one aggregator, fixes its acceptance policy at
// creation, and keeps one adaptive scorer per recognizer source. Submit feeds
// an observation through extraction, policy check, scoring, and voting.
// Candidates that fail any stage are dropped with a debug event
// (event_type=candidate_rejected); malformed input is a rejection, never an
// error. The only user-visible error after creation is ErrSessionTerminated.
//
// Manager hands out UUID handles, cancels sessions that go idle, and forgets
// terminated sessions once their retention period passes.
package session
