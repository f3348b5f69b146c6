package history_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vinscan/internal/aggregate"
	"vinscan/internal/history"
	"vinscan/internal/session"
	"vinscan/internal/testsupport"
	"vinscan/internal/vin"
)

const (
	vinHonda = "1HGCM82633A004352"
	vinAcura = "JH4KA7561PC008269"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := os.Stat(cfg.History.Path); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty history, got %d", n)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestReopenKeepsDecisions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.RecordDecision(t, store, "s-1", vinHonda, base)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	n, err := reopened.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 decision after reopen, got %d", n)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = history.OpenPath(path)
	if !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRecordDecisionRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record := session.DecisionRecord{
		SessionID: "sess-42",
		Policy:    vin.PolicyLenient,
		Capacity:  3,
		StartedAt: base,
		DecidedAt: base.Add(2 * time.Second),
		Decision: aggregate.Decision{
			VIN:            vinHonda,
			EvidenceCount:  2,
			MeanConfidence: 0.875,
			Tally: []aggregate.Group{
				{VIN: vinHonda, Count: 2, MeanConfidence: 0.875, Score: 1.75},
				{VIN: vinAcura, Count: 1, MeanConfidence: 0.95, Score: 0.95},
			},
		},
	}
	if err := store.RecordDecision(ctx, record); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	entry, err := store.GetBySession(ctx, "sess-42")
	if err != nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.VIN != vinHonda || entry.EvidenceCount != 2 || entry.MeanConfidence != 0.875 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Policy != vin.PolicyLenient || entry.Capacity != 3 {
		t.Fatalf("unexpected session fields %+v", entry)
	}
	if !entry.StartedAt.Equal(record.StartedAt) || !entry.DecidedAt.Equal(record.DecidedAt) {
		t.Fatalf("timestamps not preserved: %v %v", entry.StartedAt, entry.DecidedAt)
	}
	if len(entry.Tally) != 2 || entry.Tally[1].VIN != vinAcura || entry.Tally[0].Score != 1.75 {
		t.Fatalf("tally not preserved: %+v", entry.Tally)
	}

	missing, err := store.GetBySession(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown session, got %+v %v", missing, err)
	}
}

func TestRecordDecisionRejectsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.RecordDecision(t, store, "dup", vinHonda, base)
	err := store.RecordDecision(context.Background(), session.DecisionRecord{
		SessionID: "dup",
		Policy:    vin.PolicyStrict,
		Capacity:  1,
		DecidedAt: base,
		Decision:  aggregate.Decision{VIN: vinHonda, EvidenceCount: 1, MeanConfidence: 0.9},
	})
	if !errors.Is(err, history.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestListOrdersAndFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.RecordDecision(t, store, "a", vinHonda, base)
	testsupport.RecordDecision(t, store, "b", vinAcura, base.Add(time.Minute))
	testsupport.RecordDecision(t, store, "c", vinHonda, base.Add(2*time.Minute))

	cases := []struct {
		name  string
		query history.Query
		want  []string
	}{
		{"newest first", history.Query{}, []string{"c", "b", "a"}},
		{"limit", history.Query{Limit: 2}, []string{"c", "b"}},
		{"by vin", history.Query{VIN: "1hgcm82633a004352"}, []string{"c", "a"}},
		{"since", history.Query{Since: base.Add(30 * time.Second)}, []string{"c", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := store.List(ctx, tc.query)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(entries) != len(tc.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tc.want))
			}
			for i, id := range tc.want {
				if entries[i].SessionID != id {
					t.Fatalf("entry %d = %s, want %s", i, entries[i].SessionID, id)
				}
			}
		})
	}
}

func TestPrune(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.RecordDecision(t, store, "old", vinHonda, base.Add(-48*time.Hour))
	testsupport.RecordDecision(t, store, "new", vinAcura, base)

	removed, err := store.Prune(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	entries, err := store.List(ctx, history.Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != "new" {
		t.Fatalf("unexpected survivors %+v", entries)
	}
}

func TestStoreAsSessionSink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	s, err := session.New(session.Options{
		Capacity:      1,
		Policy:        vin.PolicyStrict,
		MinConfidence: 0.7,
		Sink:          store,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	raw := observationFor(vinAcura)
	if _, err := s.Submit(context.Background(), raw); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	entry, err := store.GetBySession(context.Background(), s.ID())
	if err != nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if entry == nil || entry.VIN != vinAcura {
		t.Fatalf("expected recorded decision, got %+v", entry)
	}
}
