package aggregate

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"vinscan/internal/vin"
)

var (
	// ErrInactive is returned once the aggregator has decided or been stopped.
	ErrInactive = errors.New("aggregator inactive")
	// ErrFull is returned when the buffer already holds capacity candidates.
	ErrFull = errors.New("aggregator buffer full")
	// ErrRejected is returned for candidates that break the buffer invariants.
	ErrRejected = errors.New("candidate rejected")
)

// Aggregator is the bounded vote buffer of one session.
type Aggregator struct {
	capacity int
	policy   vin.Policy
	active   atomic.Bool

	mu       sync.Mutex
	buffer   []Candidate
	decision *Decision
}

// New creates an active aggregator. capacity must be positive and policy
// known.
func New(capacity int, policy vin.Policy) (*Aggregator, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown policy %q", policy)
	}
	a := &Aggregator{
		capacity: capacity,
		policy:   policy,
		buffer:   make([]Candidate, 0, capacity),
	}
	a.active.Store(true)
	return a, nil
}

// Accept appends c and returns the Decision when c fills the buffer.
func (a *Aggregator) Accept(c Candidate) (*Decision, error) {
	if !a.active.Load() {
		return nil, ErrInactive
	}
	if err := a.check(c); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active.Load() {
		return nil, ErrInactive
	}
	if len(a.buffer) >= a.capacity {
		return nil, ErrFull
	}
	a.buffer = append(a.buffer, c)
	if len(a.buffer) < a.capacity {
		return nil, nil
	}

	decision := elect(a.buffer)
	a.decision = &decision
	a.active.Store(false)
	out := decision
	return &out, nil
}

// Stop deactivates the aggregator without a decision. It reports whether
// the aggregator was active. Stop holds the buffer lock, so it never
// interleaves with an Accept that is appending or electing: either the
// Accept decides first and Stop returns false, or Stop wins and the Accept
// sees ErrInactive.
func (a *Aggregator) Stop() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active.Swap(false)
}

// Active reports whether candidates are still accepted.
func (a *Aggregator) Active() bool {
	return a.active.Load()
}

// Len returns the number of buffered candidates.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// Capacity returns the configured sample capacity.
func (a *Aggregator) Capacity() int {
	return a.capacity
}

// Policy returns the acceptance policy candidates must share.
func (a *Aggregator) Policy() vin.Policy {
	return a.policy
}

// Decision returns the emitted decision, if any.
func (a *Aggregator) Decision() (Decision, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decision == nil {
		return Decision{}, false
	}
	return *a.decision, true
}

// Snapshot returns a copy of the buffer in arrival order.
func (a *Aggregator) Snapshot() []Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Candidate, len(a.buffer))
	copy(out, a.buffer)
	return out
}

func (a *Aggregator) check(c Candidate) error {
	if c.Policy != a.policy {
		return fmt.Errorf("%w: %s candidate in %s aggregation", ErrRejected, c.Policy, a.policy)
	}
	if !a.policy.Accepts(c.VIN) {
		return fmt.Errorf("%w: %q fails %s policy", ErrRejected, c.VIN, a.policy)
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside (0,1]", ErrRejected, c.Confidence)
	}
	return nil
}
