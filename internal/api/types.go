package api

import (
	"time"

	"vinscan/internal/aggregate"
	"vinscan/internal/history"
	"vinscan/internal/session"
)

// StartSessionRequest overrides the daemon's session defaults. Zero fields
// keep the configured value.
type StartSessionRequest struct {
	Capacity      int     `json:"capacity,omitempty"`
	Policy        string  `json:"policy,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// StartSessionResponse carries the handle of a new session.
type StartSessionResponse struct {
	ID string `json:"id"`
}

// SubmitResponse reports the effect of one observation. Zoom is the current
// hint for the observation's source; Decision is set only by the
// observation that completed the vote.
type SubmitResponse struct {
	Decision *aggregate.Decision `json:"decision,omitempty"`
	Zoom     float64             `json:"zoom"`
	State    session.State       `json:"state"`
}

// SessionListResponse wraps the sessions the daemon currently holds.
type SessionListResponse struct {
	Sessions []session.Info `json:"sessions"`
}

// DecisionListResponse wraps recorded decisions, newest first.
type DecisionListResponse struct {
	Decisions []history.Entry `json:"decisions"`
	Total     int             `json:"total"`
}

// SessionDefaults mirrors the options new sessions start from.
type SessionDefaults struct {
	Capacity      int     `json:"capacity"`
	Policy        string  `json:"policy"`
	MinConfidence float64 `json:"min_confidence"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool            `json:"running"`
	PID            int             `json:"pid"`
	RunID          string          `json:"run_id"`
	StartedAt      time.Time       `json:"started_at,omitzero"`
	LockFilePath   string          `json:"lock_file_path"`
	HistoryEnabled bool            `json:"history_enabled"`
	HistoryPath    string          `json:"history_path,omitempty"`
	Decisions      int             `json:"decisions_recorded"`
	Notifications  bool            `json:"notifications_enabled"`
	Sessions       session.Stats   `json:"sessions"`
	Defaults       SessionDefaults `json:"defaults"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
