package aggregate

import (
	"time"

	"vinscan/internal/observation"
	"vinscan/internal/vin"
)

// Candidate is a validated, scored token. It is never mutated after it is
// accepted.
type Candidate struct {
	VIN        string
	Source     observation.Source
	Policy     vin.Policy
	Confidence float64
	ObservedAt time.Time
}

// Group is the vote tally for one VIN.
type Group struct {
	VIN            string  `json:"vin"`
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
	Score          float64 `json:"score"`

	firstSeen time.Time
	firstSeq  int
}

// Decision is the terminal result of a session.
type Decision struct {
	VIN            string  `json:"vin"`
	EvidenceCount  int     `json:"evidence_count"`
	MeanConfidence float64 `json:"mean_confidence"`
	// Tally lists every group, best first.
	Tally []Group `json:"tally,omitempty"`
}
