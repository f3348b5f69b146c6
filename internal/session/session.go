package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vinscan/internal/aggregate"
	"vinscan/internal/logging"
	"vinscan/internal/observation"
	"vinscan/internal/scoring"
	"vinscan/internal/services"
	"vinscan/internal/vin"
)

// State is the externally visible lifecycle state.
type State string

const (
	StateActive     State = "active"
	StateTerminated State = "terminated"
)

// Outcome says why a terminated session ended.
type Outcome string

const (
	OutcomeDecided   Outcome = "decided"
	OutcomeCancelled Outcome = "cancelled"
)

// Rejection reasons reported in candidate_rejected events.
const (
	ReasonMalformed        = "malformed_observation"
	ReasonNoToken          = "no_token"
	ReasonShape            = "shape"
	ReasonCheckDigit       = "check_digit"
	ReasonBelowThreshold   = "below_threshold"
	ReasonCapacityExceeded = "capacity_exceeded"
	ReasonInvariant        = "invariant"
)

// Session is one scanning attempt. Submit and Cancel are safe for concurrent
// use; accepted candidates are serialized by the aggregator.
type Session struct {
	id        string
	opts      Options
	logger    *slog.Logger
	agg       *aggregate.Aggregator
	scorers   map[observation.Source]*scoring.SourceScorer
	now       func() time.Time
	startedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	endedAt      time.Time
	observations int
}

// New validates opts and returns an active session.
func New(opts Options) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	agg, err := aggregate.New(opts.Capacity, opts.Policy)
	if err != nil {
		return nil, invalidConfig("aggregator", "%v", err)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	scorer := scoring.New(opts.weights(), opts.MinConfidence)
	started := now()
	s := &Session{
		id:     opts.ID,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "session").With(logging.String(logging.FieldSessionID, opts.ID)),
		agg:    agg,
		scorers: map[observation.Source]*scoring.SourceScorer{
			observation.SourceBarcode:     scorer.ForSource(observation.SourceBarcode),
			observation.SourceOpticalText: scorer.ForSource(observation.SourceOpticalText),
		},
		now:          now,
		startedAt:    started,
		lastActivity: started,
	}
	s.logger.Debug("session started",
		logging.String("policy", opts.Policy.String()),
		logging.Int("capacity", opts.Capacity),
		logging.Float64("min_confidence", opts.MinConfidence),
	)
	return s, nil
}

// ID returns the session handle.
func (s *Session) ID() string {
	return s.id
}

// Submit processes one observation. It returns the Decision when this
// observation completes the vote, nil while voting continues, and
// ErrSessionTerminated once the session has ended.
func (s *Session) Submit(ctx context.Context, raw observation.Raw) (*aggregate.Decision, error) {
	if !s.agg.Active() {
		return nil, fmt.Errorf("session %s: %w", s.id, ErrSessionTerminated)
	}

	arrived := s.now()
	s.mu.Lock()
	s.lastActivity = arrived
	s.observations++
	s.mu.Unlock()

	if raw.ObservedAt.IsZero() {
		raw.ObservedAt = arrived
	}

	ctx = services.WithSource(services.WithSessionID(ctx, s.id), raw.Source.String())
	logger := logging.WithContext(ctx, s.logger)

	if err := raw.Validate(); err != nil {
		s.reject(logger, ReasonMalformed, "", 0, logging.Error(err))
		return nil, nil
	}

	scorer := s.scorers[raw.Source]
	accepted := false
	produced := false
	for tok := range s.tokens(raw) {
		produced = true
		if !s.opts.Policy.Accepts(tok.Value) {
			reason := ReasonCheckDigit
			if !vin.ShapeOK(tok.Value) {
				reason = ReasonShape
			}
			s.reject(logger, reason, tok.Value, 0)
			continue
		}

		confidence, ok := scorer.Score(scoring.Input{
			Token:         tok,
			Hint:          raw.Hint,
			Box:           raw.Box,
			RawConfidence: raw.Confidence,
		})
		if !ok {
			s.reject(logger, ReasonBelowThreshold, tok.Value, confidence)
			continue
		}
		accepted = true

		decision, err := s.agg.Accept(aggregate.Candidate{
			VIN:        tok.Value,
			Source:     raw.Source,
			Policy:     s.opts.Policy,
			Confidence: confidence,
			ObservedAt: raw.ObservedAt,
		})
		switch {
		case errors.Is(err, aggregate.ErrInactive):
			scorer.Observe(true)
			return nil, fmt.Errorf("session %s: %w", s.id, ErrSessionTerminated)
		case errors.Is(err, aggregate.ErrFull):
			s.reject(logger, ReasonCapacityExceeded, tok.Value, confidence)
			scorer.Observe(true)
			return nil, nil
		case err != nil:
			s.reject(logger, ReasonInvariant, tok.Value, confidence, logging.Error(err))
			continue
		}

		logger.Debug("candidate accepted",
			logging.String(logging.FieldEventType, logging.EventCandidateAccepted),
			logging.String(logging.FieldToken, tok.Value),
			logging.Float64(logging.FieldConfidence, confidence),
		)
		scorer.Observe(true)
		if decision != nil {
			s.finish(ctx, logger, *decision)
			return decision, nil
		}
		// One observation is one piece of evidence, however many windows
		// its text held.
		return nil, nil
	}

	if !produced {
		s.reject(logger, ReasonNoToken, "", 0)
	}
	scorer.Observe(accepted)
	return nil, nil
}

// Cancel terminates the session without a decision. It reports whether the
// session was still active.
func (s *Session) Cancel() bool {
	return s.cancel("cancelled by caller")
}

func (s *Session) cancel(reason string) bool {
	if !s.agg.Stop() {
		return false
	}
	s.mu.Lock()
	s.endedAt = s.now()
	s.mu.Unlock()
	s.logger.Info("session cancelled",
		logging.String(logging.FieldEventType, logging.EventSessionCancelled),
		logging.String(logging.FieldReason, reason),
		logging.Int("buffered", s.agg.Len()),
	)
	return true
}

// State reports whether the session still accepts observations.
func (s *Session) State() State {
	if s.agg.Active() {
		return StateActive
	}
	return StateTerminated
}

// Outcome is empty while the session is active.
func (s *Session) Outcome() Outcome {
	if _, ok := s.agg.Decision(); ok {
		return OutcomeDecided
	}
	if s.agg.Active() {
		return ""
	}
	return OutcomeCancelled
}

// Decision returns the emitted decision, if any.
func (s *Session) Decision() (aggregate.Decision, bool) {
	return s.agg.Decision()
}

// Zoom returns the zoom ratio suggested for source.
func (s *Session) Zoom(source observation.Source) float64 {
	if scorer, ok := s.scorers[source]; ok {
		return scorer.State().Zoom()
	}
	return 1.0
}

// Info is a point-in-time description of a session.
type Info struct {
	ID            string              `json:"id"`
	State         State               `json:"state"`
	Outcome       Outcome             `json:"outcome,omitempty"`
	Policy        vin.Policy          `json:"policy"`
	Capacity      int                 `json:"capacity"`
	Buffered      int                 `json:"buffered"`
	MinConfidence float64             `json:"min_confidence"`
	Observations  int                 `json:"observations"`
	Zoom          map[string]float64  `json:"zoom"`
	StartedAt     time.Time           `json:"started_at"`
	LastActivity  time.Time           `json:"last_activity"`
	EndedAt       time.Time           `json:"ended_at,omitzero"`
	Decision      *aggregate.Decision `json:"decision,omitempty"`
}

// Describe snapshots the session.
func (s *Session) Describe() Info {
	s.mu.Lock()
	info := Info{
		ID:            s.id,
		Policy:        s.opts.Policy,
		Capacity:      s.opts.Capacity,
		MinConfidence: s.opts.MinConfidence,
		Observations:  s.observations,
		StartedAt:     s.startedAt,
		LastActivity:  s.lastActivity,
		EndedAt:       s.endedAt,
	}
	s.mu.Unlock()

	info.State = s.State()
	info.Outcome = s.Outcome()
	info.Buffered = s.agg.Len()
	info.Zoom = map[string]float64{
		observation.SourceBarcode.String():     s.Zoom(observation.SourceBarcode),
		observation.SourceOpticalText.String(): s.Zoom(observation.SourceOpticalText),
	}
	if decision, ok := s.agg.Decision(); ok {
		info.Decision = &decision
	}
	return info
}

func (s *Session) finish(ctx context.Context, logger *slog.Logger, decision aggregate.Decision) {
	decidedAt := s.now()
	s.mu.Lock()
	s.endedAt = decidedAt
	s.mu.Unlock()

	logger.Info("decision emitted", logging.Args(logging.DecisionAttrs(decision.VIN, decision.EvidenceCount, decision.MeanConfidence)...)...)

	if s.opts.Sink == nil {
		return
	}
	record := DecisionRecord{
		SessionID: s.id,
		Policy:    s.opts.Policy,
		Capacity:  s.opts.Capacity,
		StartedAt: s.startedAt,
		DecidedAt: decidedAt,
		Decision:  decision,
	}
	if err := s.opts.Sink.RecordDecision(context.WithoutCancel(ctx), record); err != nil {
		logging.WarnWithContext(logger, "decision sink failed", logging.EventSinkFailed,
			logging.Error(err),
			logging.String(logging.FieldImpact, "decision was returned but not recorded"),
			logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
		)
	}
}

func (s *Session) reject(logger *slog.Logger, reason, token string, confidence float64, extra ...logging.Attr) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := append(logging.RejectionAttrs(reason, token, confidence), extra...)
	logger.Debug("candidate rejected", logging.Args(attrs...)...)
}

// tokens yields the candidate windows of raw once each, in the order the
// source's texts are tried.
func (s *Session) tokens(raw observation.Raw) iter.Seq[vin.Token] {
	return func(yield func(vin.Token) bool) {
		seen := make(map[string]struct{})
		emit := func(text string, opts vin.Options) bool {
			for tok := range vin.Extract(text, opts) {
				if _, dup := seen[tok.Value]; dup {
					continue
				}
				seen[tok.Value] = struct{}{}
				if !yield(tok) {
					return false
				}
			}
			return true
		}

		switch raw.Source {
		case observation.SourceBarcode:
			opts := vin.Options{TrimPadding: true}
			if !emit(raw.Text, opts) {
				return
			}
			if raw.AltText != "" {
				emit(raw.AltText, opts)
			}
		case observation.SourceOpticalText:
			emit(s.labelText(raw), vin.Options{LabelText: true})
		}
	}
}

// labelText assembles OCR text, dropping lines skewed past MaxLineSkew.
func (s *Session) labelText(raw observation.Raw) string {
	if len(raw.Lines) == 0 {
		return raw.Text
	}
	kept := make([]string, 0, len(raw.Lines))
	for _, line := range raw.Lines {
		if s.opts.MaxLineSkew > 0 && line.Angle != nil && math.Abs(*line.Angle) > s.opts.MaxLineSkew {
			continue
		}
		kept = append(kept, line.Text)
	}
	return strings.Join(kept, "\n")
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

func (s *Session) endedBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.endedAt.IsZero() && s.endedAt.Before(cutoff)
}
