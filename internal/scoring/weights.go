package scoring

import (
	"errors"
	"fmt"
	"maps"

	"vinscan/internal/observation"
)

// Weights holds every tunable used by the scorer.
type Weights struct {
	Symbology map[observation.Symbology]float64
	// Barcode applies to barcode symbologies missing from Symbology.
	Barcode float64
	OCR     float64

	RepairFactor    float64
	AmbiguityFactor float64
	LargeBoxFactor  float64
	SmallBoxFactor  float64

	LargeMinWidth  int
	LargeMinHeight int
	SmallMaxWidth  int
	SmallMaxHeight int
}

// DefaultWeights returns the weights observed in production scanners.
func DefaultWeights() Weights {
	return Weights{
		Symbology: map[observation.Symbology]float64{
			observation.SymbologyCode128:    0.95,
			observation.SymbologyCode39:     0.90,
			observation.SymbologyDataMatrix: 0.85,
			observation.SymbologyQRCode:     0.95,
			observation.SymbologyPDF417:     0.90,
		},
		Barcode:         0.80,
		OCR:             0.80,
		RepairFactor:    0.7,
		AmbiguityFactor: 0.8,
		LargeBoxFactor:  1.1,
		SmallBoxFactor:  0.9,
		LargeMinWidth:   200,
		LargeMinHeight:  50,
		SmallMaxWidth:   100,
		SmallMaxHeight:  25,
	}
}

// Clone returns a deep copy so callers can adjust weights per session.
func (w Weights) Clone() Weights {
	out := w
	out.Symbology = maps.Clone(w.Symbology)
	return out
}

// Validate checks that base weights lie in (0,1] and multipliers are positive.
func (w Weights) Validate() error {
	for name, value := range w.Symbology {
		if value <= 0 || value > 1 {
			return fmt.Errorf("symbology weight %s must be in (0,1], got %v", name, value)
		}
	}
	if w.Barcode <= 0 || w.Barcode > 1 {
		return fmt.Errorf("barcode weight must be in (0,1], got %v", w.Barcode)
	}
	if w.OCR <= 0 || w.OCR > 1 {
		return fmt.Errorf("ocr weight must be in (0,1], got %v", w.OCR)
	}
	for name, factor := range map[string]float64{
		"repair factor":    w.RepairFactor,
		"ambiguity factor": w.AmbiguityFactor,
		"large box factor": w.LargeBoxFactor,
		"small box factor": w.SmallBoxFactor,
	} {
		if factor <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, factor)
		}
	}
	if w.SmallMaxWidth > w.LargeMinWidth || w.SmallMaxHeight > w.LargeMinHeight {
		return errors.New("small box thresholds must not exceed large box thresholds")
	}
	return nil
}
