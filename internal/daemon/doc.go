// Package daemon coordinates the long-running vinscan process.
//
// It wires configuration, the session manager, and the optional decision
// history into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon serves the HTTP API callers use to start
// sessions, stream observations into them, and read recorded decisions, and
// it runs the manager's reaper so abandoned sessions time out.
//
// Keep orchestration logic here: voting lives in the session and aggregate
// packages while the daemon focuses on startup, shutdown, and transport.
package daemon
