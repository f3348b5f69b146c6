package scoring

import (
	"math"
	"sync"
)

const (
	missesBeforeZoom = 5
	zoomStep         = 0.2
	zoomCeiling      = 1.5
	baseZoom         = 1.0
)

// SourceState follows one source's recent misses and suggests a camera zoom
// ratio to try next. Once the miss streak exceeds five, every further miss
// steps the zoom up by 0.2, wrapping back to 1.0 after passing 1.5. A hit
// resets the streak but keeps the current zoom.
type SourceState struct {
	mu     sync.Mutex
	misses int
	zoom   float64
}

// NewSourceState returns state at 1.0x zoom with no misses.
func NewSourceState() *SourceState {
	return &SourceState{zoom: baseZoom}
}

// Hit resets the miss streak.
func (s *SourceState) Hit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses = 0
}

// Miss extends the miss streak and adjusts the zoom once it is long enough.
func (s *SourceState) Miss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses++
	if s.misses <= missesBeforeZoom {
		return
	}
	if s.zoom > zoomCeiling {
		s.zoom = baseZoom
		return
	}
	s.zoom = math.Round((s.zoom+zoomStep)*100) / 100
}

// Zoom returns the suggested zoom ratio.
func (s *SourceState) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Misses returns the current miss streak.
func (s *SourceState) Misses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.misses
}
