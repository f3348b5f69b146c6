package testsupport

import (
	"context"
	"testing"
	"time"

	"vinscan/internal/aggregate"
	"vinscan/internal/config"
	"vinscan/internal/history"
	"vinscan/internal/session"
	"vinscan/internal/vin"
)

// MustOpenStore opens a history.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordDecision stores a single-sample decision for value in store.
func RecordDecision(t testing.TB, store *history.Store, sessionID, value string, decidedAt time.Time) {
	t.Helper()

	record := session.DecisionRecord{
		SessionID: sessionID,
		Policy:    vin.PolicyStrict,
		Capacity:  1,
		StartedAt: decidedAt.Add(-time.Second),
		DecidedAt: decidedAt,
		Decision: aggregate.Decision{
			VIN:            value,
			EvidenceCount:  1,
			MeanConfidence: 0.95,
			Tally:          []aggregate.Group{{VIN: value, Count: 1, MeanConfidence: 0.95, Score: 0.95}},
		},
	}
	if err := store.RecordDecision(context.Background(), record); err != nil {
		t.Fatalf("store.RecordDecision: %v", err)
	}
}
