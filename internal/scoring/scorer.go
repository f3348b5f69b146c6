package scoring

import (
	"vinscan/internal/observation"
	"vinscan/internal/vin"
)

// Input is everything the scorer looks at for one token.
type Input struct {
	Token  vin.Token
	Source observation.Source
	Hint   observation.Symbology
	Box    *observation.Box
	// RawConfidence is the recognizer's own score; zero means absent.
	RawConfidence float64
}

// Scorer computes confidences with a fixed set of weights and a minimum
// acceptance threshold. It is stateless and safe for concurrent use.
type Scorer struct {
	weights Weights
	min     float64
}

// New builds a scorer. minConfidence is exclusive: a score must be strictly
// greater to be accepted.
func New(weights Weights, minConfidence float64) *Scorer {
	return &Scorer{weights: weights.Clone(), min: minConfidence}
}

// MinConfidence returns the acceptance threshold.
func (s *Scorer) MinConfidence() float64 {
	return s.min
}

// Score returns the clamped confidence for in. A result of zero means the
// token carries no usable evidence.
func (s *Scorer) Score(in Input) float64 {
	confidence := s.base(in)
	if in.Token.Repaired {
		confidence *= s.weights.RepairFactor
	}
	if in.Token.Substituted {
		confidence *= s.weights.AmbiguityFactor
	}
	if in.Source == observation.SourceBarcode {
		confidence *= s.boxFactor(in.Box)
	}
	return clamp(confidence)
}

// Accepts reports whether confidence clears the threshold.
func (s *Scorer) Accepts(confidence float64) bool {
	return confidence > 0 && confidence > s.min
}

// ForSource returns a scorer bound to fresh adaptive state for one source.
func (s *Scorer) ForSource(source observation.Source) *SourceScorer {
	return &SourceScorer{scorer: s, source: source, state: NewSourceState()}
}

func (s *Scorer) base(in Input) float64 {
	if in.RawConfidence > 0 {
		return in.RawConfidence
	}
	if in.Source == observation.SourceOpticalText || in.Hint == observation.SymbologyOCR {
		return s.weights.OCR
	}
	if weight, ok := s.weights.Symbology[in.Hint]; ok {
		return weight
	}
	return s.weights.Barcode
}

func (s *Scorer) boxFactor(box *observation.Box) float64 {
	if box == nil || box.Width <= 0 || box.Height <= 0 {
		return 1.0
	}
	switch {
	case box.Width > s.weights.LargeMinWidth && box.Height > s.weights.LargeMinHeight:
		return s.weights.LargeBoxFactor
	case box.Width < s.weights.SmallMaxWidth || box.Height < s.weights.SmallMaxHeight:
		return s.weights.SmallBoxFactor
	default:
		return 1.0
	}
}

func clamp(v float64) float64 {
	switch {
	case v <= 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// SourceScorer scores tokens from one source and tracks that source's
// adaptive state.
type SourceScorer struct {
	scorer *Scorer
	source observation.Source
	state  *SourceState
}

// Score scores in and reports whether the result clears the threshold.
func (ss *SourceScorer) Score(in Input) (float64, bool) {
	in.Source = ss.source
	confidence := ss.scorer.Score(in)
	return confidence, ss.scorer.Accepts(confidence)
}

// Observe records whether an observation from this source produced at least
// one accepted candidate.
func (ss *SourceScorer) Observe(accepted bool) {
	if accepted {
		ss.state.Hit()
		return
	}
	ss.state.Miss()
}

// State exposes the adaptive state for reporting.
func (ss *SourceScorer) State() *SourceState {
	return ss.state
}
