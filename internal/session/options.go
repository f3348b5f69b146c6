package session

import (
	"fmt"
	"log/slog"
	"time"

	"vinscan/internal/config"
	"vinscan/internal/observation"
	"vinscan/internal/scoring"
	"vinscan/internal/vin"
)

// Options configures one session.
type Options struct {
	// ID is assigned by the manager; New generates one when empty.
	ID            string
	Capacity      int
	Policy        vin.Policy
	MinConfidence float64
	// Weights defaults to scoring.DefaultWeights when nil.
	Weights *scoring.Weights
	// MaxLineSkew drops OCR lines tilted further than this many degrees.
	// Zero keeps every line.
	MaxLineSkew float64

	Logger *slog.Logger
	Sink   DecisionSink
	Now    func() time.Time
}

func (o Options) validate() error {
	if o.Capacity <= 0 {
		return invalidConfig("capacity", "must be positive, got %d", o.Capacity)
	}
	if !o.Policy.Valid() {
		return invalidConfig("policy", "unknown policy %q", o.Policy)
	}
	if o.MinConfidence <= 0 || o.MinConfidence > 1 {
		return invalidConfig("min_confidence", "must be in (0,1], got %v", o.MinConfidence)
	}
	if o.MaxLineSkew < 0 {
		return invalidConfig("max_line_skew", "must be non-negative, got %v", o.MaxLineSkew)
	}
	if o.Weights != nil {
		if err := o.Weights.Validate(); err != nil {
			return invalidConfig("weights", "%v", err)
		}
	}
	return nil
}

func (o Options) weights() scoring.Weights {
	if o.Weights == nil {
		return scoring.DefaultWeights()
	}
	return o.Weights.Clone()
}

// OptionsFromConfig converts the [session] and [scoring] sections into
// session defaults.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}
	policy, err := vin.ParsePolicy(cfg.Session.Policy)
	if err != nil {
		return Options{}, invalidConfig("policy", "%v", err)
	}

	weights := scoring.Weights{
		Symbology:       make(map[observation.Symbology]float64, len(cfg.Scoring.Symbology)),
		Barcode:         cfg.Scoring.Barcode,
		OCR:             cfg.Scoring.OCR,
		RepairFactor:    cfg.Scoring.RepairFactor,
		AmbiguityFactor: cfg.Scoring.AmbiguityFactor,
		LargeBoxFactor:  cfg.Scoring.LargeBoxFactor,
		SmallBoxFactor:  cfg.Scoring.SmallBoxFactor,
		LargeMinWidth:   cfg.Scoring.LargeMinWidth,
		LargeMinHeight:  cfg.Scoring.LargeMinHeight,
		SmallMaxWidth:   cfg.Scoring.SmallMaxWidth,
		SmallMaxHeight:  cfg.Scoring.SmallMaxHeight,
	}
	for name, weight := range cfg.Scoring.Symbology {
		weights.Symbology[observation.NormalizeSymbology(name)] = weight
	}

	opts := Options{
		Capacity:      cfg.Session.Capacity,
		Policy:        policy,
		MinConfidence: cfg.Session.MinConfidence,
		Weights:       &weights,
		MaxLineSkew:   cfg.Session.MaxLineSkewDegrees,
	}
	if err := opts.validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
