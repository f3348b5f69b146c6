package aggregate_test

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vinscan/internal/aggregate"
	"vinscan/internal/observation"
	"vinscan/internal/vin"
)

const (
	vinHonda  = "1HGCM82633A004352"
	vinAcura  = "JH4KA7561PC008269"
	vinTrailr = "1M8GDM9AXKP042788"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func candidate(value string, confidence float64, offset time.Duration) aggregate.Candidate {
	return aggregate.Candidate{
		VIN:        value,
		Source:     observation.SourceBarcode,
		Policy:     vin.PolicyStrict,
		Confidence: confidence,
		ObservedAt: base.Add(offset),
	}
}

func newAggregator(t *testing.T, capacity int) *aggregate.Aggregator {
	t.Helper()
	agg, err := aggregate.New(capacity, vin.PolicyStrict)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return agg
}

func TestNewRejectsBadArguments(t *testing.T) {
	if _, err := aggregate.New(0, vin.PolicyStrict); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := aggregate.New(3, vin.Policy("fuzzy")); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestCapacityOneDecidesImmediately(t *testing.T) {
	agg := newAggregator(t, 1)
	decision, err := agg.Accept(candidate(vinHonda, 0.95, 0))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if decision == nil {
		t.Fatal("expected decision at capacity")
	}
	if decision.VIN != vinHonda || decision.EvidenceCount != 1 || decision.MeanConfidence != 0.95 {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if agg.Active() {
		t.Fatal("aggregator should be inactive after deciding")
	}
	if _, err := agg.Accept(candidate(vinHonda, 0.95, time.Second)); !errors.Is(err, aggregate.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestCountBeatsSingleHighConfidence(t *testing.T) {
	agg := newAggregator(t, 3)
	steps := []aggregate.Candidate{
		candidate(vinHonda, 0.90, 0),
		candidate(vinAcura, 0.95, time.Second),
		candidate(vinHonda, 0.85, 2*time.Second),
	}
	var decision *aggregate.Decision
	for i, c := range steps {
		d, err := agg.Accept(c)
		if err != nil {
			t.Fatalf("Accept %d: %v", i, err)
		}
		if i < len(steps)-1 && d != nil {
			t.Fatalf("decision emitted early at step %d", i)
		}
		decision = d
	}
	if decision == nil {
		t.Fatal("expected decision")
	}
	if decision.VIN != vinHonda || decision.EvidenceCount != 2 {
		t.Fatalf("unexpected winner %+v", decision)
	}
	if math.Abs(decision.MeanConfidence-0.875) > 1e-9 {
		t.Fatalf("mean confidence = %v, want 0.875", decision.MeanConfidence)
	}
	if len(decision.Tally) != 2 || decision.Tally[1].VIN != vinAcura {
		t.Fatalf("unexpected tally %+v", decision.Tally)
	}
	if math.Abs(decision.Tally[0].Score-1.75) > 1e-9 {
		t.Fatalf("winner score = %v, want 1.75", decision.Tally[0].Score)
	}
}

func TestTieBreaks(t *testing.T) {
	cases := []struct {
		name  string
		input []aggregate.Candidate
		want  string
	}{
		{
			name: "earliest observation",
			input: []aggregate.Candidate{
				candidate(vinHonda, 0.9, 2*time.Second),
				candidate(vinAcura, 0.9, time.Second),
			},
			want: vinAcura,
		},
		{
			name: "earliest arrival",
			input: []aggregate.Candidate{
				candidate(vinTrailr, 0.9, 0),
				candidate(vinHonda, 0.9, 0),
			},
			want: vinTrailr,
		},
		{
			name: "within epsilon",
			input: []aggregate.Candidate{
				candidate(vinHonda, 0.9, 0),
				candidate(vinAcura, 0.9+1e-12, 0),
			},
			want: vinHonda,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := newAggregator(t, len(tc.input))
			var decision *aggregate.Decision
			for _, c := range tc.input {
				d, err := agg.Accept(c)
				if err != nil {
					t.Fatalf("Accept: %v", err)
				}
				decision = d
			}
			if decision == nil || decision.VIN != tc.want {
				t.Fatalf("winner = %+v, want %s", decision, tc.want)
			}
		})
	}
}

func TestTallyIsDeterministic(t *testing.T) {
	buffer := []aggregate.Candidate{
		candidate(vinAcura, 0.8, 0),
		candidate(vinHonda, 0.9, time.Second),
		candidate(vinAcura, 0.8, 2*time.Second),
		candidate(vinTrailr, 0.95, 3*time.Second),
	}
	first := aggregate.Tally(buffer)
	for range 20 {
		again := aggregate.Tally(buffer)
		if len(again) != len(first) {
			t.Fatalf("tally length changed: %d vs %d", len(again), len(first))
		}
		for i := range first {
			if again[i].VIN != first[i].VIN || again[i].Count != first[i].Count {
				t.Fatalf("tally order changed at %d: %+v vs %+v", i, again[i], first[i])
			}
		}
	}
	if first[0].VIN != vinAcura {
		t.Fatalf("expected %s first, got %+v", vinAcura, first[0])
	}
}

func TestAcceptRejectsInvariantViolations(t *testing.T) {
	agg := newAggregator(t, 5)
	lenient := candidate(vinHonda, 0.9, 0)
	lenient.Policy = vin.PolicyLenient

	cases := []struct {
		name string
		c    aggregate.Candidate
	}{
		{"policy mismatch", lenient},
		{"bad check digit", candidate("1HGCM82634A004352", 0.9, 0)},
		{"bad shape", candidate("1HGCM82633A00435", 0.9, 0)},
		{"zero confidence", candidate(vinHonda, 0, 0)},
		{"confidence above one", candidate(vinHonda, 1.2, 0)},
	}
	for _, tc := range cases {
		if _, err := agg.Accept(tc.c); !errors.Is(err, aggregate.ErrRejected) {
			t.Fatalf("%s: expected ErrRejected, got %v", tc.name, err)
		}
	}
	if agg.Len() != 0 {
		t.Fatalf("rejected candidates were buffered: %d", agg.Len())
	}
}

func TestLenientAggregatorAcceptsShapeOnly(t *testing.T) {
	agg, err := aggregate.New(1, vin.PolicyLenient)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := candidate("1HGCM82634A004352", 0.9, 0)
	c.Policy = vin.PolicyLenient
	decision, err := agg.Accept(c)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if decision == nil || decision.VIN != c.VIN {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestStopDeactivatesWithoutDecision(t *testing.T) {
	agg := newAggregator(t, 3)
	if _, err := agg.Accept(candidate(vinHonda, 0.9, 0)); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !agg.Stop() {
		t.Fatal("Stop should report the aggregator was active")
	}
	if agg.Stop() {
		t.Fatal("second Stop should report inactive")
	}
	if _, ok := agg.Decision(); ok {
		t.Fatal("stopped aggregator must not have a decision")
	}
	if _, err := agg.Accept(candidate(vinHonda, 0.9, 0)); !errors.Is(err, aggregate.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if got := agg.Snapshot(); len(got) != 1 || got[0].VIN != vinHonda {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestConcurrentAcceptEmitsOneDecision(t *testing.T) {
	const capacity = 15
	agg := newAggregator(t, capacity)

	var (
		wg        sync.WaitGroup
		decisions atomic.Int32
		inactive  atomic.Int32
	)
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value := vinHonda
			if i%3 == 0 {
				value = vinAcura
			}
			d, err := agg.Accept(candidate(value, 0.9, time.Duration(i)*time.Millisecond))
			switch {
			case err == nil && d != nil:
				decisions.Add(1)
			case errors.Is(err, aggregate.ErrInactive), errors.Is(err, aggregate.ErrFull):
				inactive.Add(1)
			case err != nil:
				t.Errorf("Accept: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := decisions.Load(); got != 1 {
		t.Fatalf("decisions = %d, want 1", got)
	}
	if got := agg.Len(); got != capacity {
		t.Fatalf("buffer length = %d, want %d", got, capacity)
	}
	if got := inactive.Load(); got != 64-capacity {
		t.Fatalf("refused = %d, want %d", got, 64-capacity)
	}
	decision, ok := agg.Decision()
	if !ok || decision.EvidenceCount == 0 {
		t.Fatalf("missing recorded decision: %+v", decision)
	}
}

func TestStopRacingAcceptNeverBothWin(t *testing.T) {
	for range 200 {
		agg := newAggregator(t, 1)
		var (
			wg       sync.WaitGroup
			stopped  bool
			decision *aggregate.Decision
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			decision, _ = agg.Accept(candidate(vinHonda, 0.9, 0))
		}()
		go func() {
			defer wg.Done()
			stopped = agg.Stop()
		}()
		wg.Wait()

		if stopped == (decision != nil) {
			t.Fatalf("stopped=%v decision=%+v: exactly one of them must win", stopped, decision)
		}
		if _, decided := agg.Decision(); decided == stopped {
			t.Fatalf("stored decision disagrees with stop result %v", stopped)
		}
	}
}
