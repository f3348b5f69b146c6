package session

import (
	"context"
	"errors"
	"time"

	"vinscan/internal/aggregate"
	"vinscan/internal/vin"
)

// DecisionRecord is what a session hands its sink when it decides.
type DecisionRecord struct {
	SessionID string
	Policy    vin.Policy
	Capacity  int
	StartedAt time.Time
	DecidedAt time.Time
	Decision  aggregate.Decision
}

// DecisionSink receives each session's decision exactly once. Errors are
// logged and never change the outcome.
type DecisionSink interface {
	RecordDecision(ctx context.Context, record DecisionRecord) error
}

// CombineSinks returns nil for no sinks, the sink itself for one, and a
// MultiSink otherwise. Nil entries are dropped.
func CombineSinks(sinks ...DecisionSink) DecisionSink {
	var kept MultiSink
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return kept
}

// MultiSink hands each record to every sink in order. Nil entries are
// skipped and errors are joined.
type MultiSink []DecisionSink

func (m MultiSink) RecordDecision(ctx context.Context, record DecisionRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.RecordDecision(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
