package history

import (
	"time"

	"vinscan/internal/aggregate"
	"vinscan/internal/vin"
)

// Entry is one recorded decision.
type Entry struct {
	ID             int64             `json:"id"`
	SessionID      string            `json:"session_id"`
	VIN            string            `json:"vin"`
	EvidenceCount  int               `json:"evidence_count"`
	MeanConfidence float64           `json:"mean_confidence"`
	Policy         vin.Policy        `json:"policy"`
	Capacity       int               `json:"capacity"`
	StartedAt      time.Time         `json:"started_at"`
	DecidedAt      time.Time         `json:"decided_at"`
	Tally          []aggregate.Group `json:"tally,omitempty"`
}

// Query filters List. A zero Limit returns DefaultLimit entries.
type Query struct {
	Limit int
	VIN   string
	Since time.Time
}

const (
	DefaultLimit = 50
	MaxLimit     = 1000
)
