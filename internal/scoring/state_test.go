package scoring_test

import (
	"testing"

	"vinscan/internal/observation"
	"vinscan/internal/scoring"
)

func TestSourceStateZoomSteps(t *testing.T) {
	state := scoring.NewSourceState()

	for i := 0; i < 5; i++ {
		state.Miss()
	}
	if state.Zoom() != 1.0 {
		t.Fatalf("zoom must hold for five misses, got %v", state.Zoom())
	}

	want := []float64{1.2, 1.4, 1.6, 1.0, 1.2}
	for i, expected := range want {
		state.Miss()
		if got := state.Zoom(); got != expected {
			t.Fatalf("miss %d: zoom = %v, want %v", i+6, got, expected)
		}
	}
	if state.Misses() != 10 {
		t.Fatalf("expected 10 misses, got %d", state.Misses())
	}

	state.Hit()
	if state.Misses() != 0 {
		t.Fatalf("hit must reset misses, got %d", state.Misses())
	}
	state.Miss()
	if state.Zoom() != 1.2 {
		t.Fatalf("zoom must not move until the streak rebuilds, got %v", state.Zoom())
	}
}

func TestSourceScorersDoNotShareState(t *testing.T) {
	scorer := scoring.New(scoring.DefaultWeights(), 0.7)
	barcode := scorer.ForSource(observation.SourceBarcode)
	ocr := scorer.ForSource(observation.SourceOpticalText)

	for i := 0; i < 7; i++ {
		barcode.Observe(false)
	}
	if barcode.State().Zoom() == 1.0 {
		t.Fatal("barcode zoom should have moved")
	}
	if ocr.State().Zoom() != 1.0 || ocr.State().Misses() != 0 {
		t.Fatal("ocr state must be untouched")
	}

	barcode.Observe(true)
	if barcode.State().Misses() != 0 {
		t.Fatal("accepted observation must reset the streak")
	}
}
