package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"vinscan/internal/aggregate"
	"vinscan/internal/logging"
	"vinscan/internal/observation"
)

// Handle identifies a session owned by a Manager.
type Handle string

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Defaults seeds Manager.Defaults; its Logger, Sink and Now are applied
	// to every started session.
	Defaults    Options
	IdleTimeout time.Duration
	Retention   time.Duration
	// MaxActive caps concurrently active sessions. Zero means no limit.
	MaxActive int
	Logger    *slog.Logger
}

// Manager owns sessions behind handles.
type Manager struct {
	opts   ManagerOptions
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[Handle]*Session
	decided  int
}

// Stats summarizes the sessions a manager currently holds.
type Stats struct {
	Active     int `json:"active"`
	Terminated int `json:"terminated"`
	Decided    int `json:"decided_total"`
}

// NewManager builds a manager. Defaults are validated lazily by Start.
func NewManager(opts ManagerOptions) *Manager {
	now := opts.Defaults.Now
	if now == nil {
		now = time.Now
	}
	if opts.Defaults.Logger == nil {
		opts.Defaults.Logger = opts.Logger
	}
	return &Manager{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "session-manager"),
		now:      now,
		sessions: make(map[Handle]*Session),
	}
}

// Defaults returns the options new sessions start from. Callers override
// fields and pass the result to Start.
func (m *Manager) Defaults() Options {
	opts := m.opts.Defaults
	if opts.Weights != nil {
		w := opts.Weights.Clone()
		opts.Weights = &w
	}
	opts.ID = ""
	return opts
}

// Start creates a session and returns its handle.
func (m *Manager) Start(opts Options) (Handle, error) {
	opts.ID = uuid.NewString()
	if opts.Logger == nil {
		opts.Logger = m.opts.Defaults.Logger
	}
	if opts.Sink == nil {
		opts.Sink = m.opts.Defaults.Sink
	}
	if opts.Now == nil {
		opts.Now = m.now
	}
	sink := opts.Sink
	opts.Sink = countingSink{next: sink, m: m}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts.MaxActive > 0 && m.activeLocked() >= m.opts.MaxActive {
		return "", fmt.Errorf("%w (limit %d)", ErrTooManySessions, m.opts.MaxActive)
	}
	s, err := New(opts)
	if err != nil {
		return "", err
	}
	handle := Handle(s.ID())
	m.sessions[handle] = s
	return handle, nil
}

// Submit forwards raw to the session behind h.
func (m *Manager) Submit(ctx context.Context, h Handle, raw observation.Raw) (*aggregate.Decision, error) {
	s, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, raw)
}

// Cancel terminates the session behind h. Cancelling a session that already
// ended returns ErrSessionTerminated.
func (m *Manager) Cancel(h Handle) error {
	s, err := m.lookup(h)
	if err != nil {
		return err
	}
	if !s.Cancel() {
		return fmt.Errorf("session %s: %w", h, ErrSessionTerminated)
	}
	return nil
}

// Describe snapshots the session behind h.
func (m *Manager) Describe(h Handle) (Info, error) {
	s, err := m.lookup(h)
	if err != nil {
		return Info{}, err
	}
	return s.Describe(), nil
}

// Zoom returns the zoom hint for source in the session behind h.
func (m *Manager) Zoom(h Handle, source observation.Source) (float64, error) {
	s, err := m.lookup(h)
	if err != nil {
		return 0, err
	}
	return s.Zoom(source), nil
}

// List describes every held session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Describe())
	}
	m.mu.RUnlock()
	slices.SortFunc(infos, func(a, b Info) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return infos
}

// Stats counts held sessions by state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{Decided: m.decided}
	for _, s := range m.sessions {
		if s.State() == StateActive {
			stats.Active++
		} else {
			stats.Terminated++
		}
	}
	return stats
}

// Reap cancels sessions idle longer than IdleTimeout and forgets terminated
// sessions older than Retention.
func (m *Manager) Reap() (cancelled, forgotten int) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for handle, s := range m.sessions {
		if s.State() == StateActive {
			if m.opts.IdleTimeout > 0 && s.idleSince(now) > m.opts.IdleTimeout {
				if s.cancel("idle timeout") {
					cancelled++
				}
			}
			continue
		}
		if s.endedBefore(now.Add(-m.opts.Retention)) {
			delete(m.sessions, handle)
			forgotten++
		}
	}
	if cancelled > 0 || forgotten > 0 {
		m.logger.Debug("sessions reaped",
			logging.Int("cancelled", cancelled),
			logging.Int("forgotten", forgotten),
		)
	}
	return cancelled, forgotten
}

// Run reaps every interval until ctx is done, then cancels every active
// session.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}

// Close cancels every active session.
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		s.cancel("shutdown")
	}
}

func (m *Manager) lookup(h Handle) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[h]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", h, ErrUnknownSession)
	}
	return s, nil
}

func (m *Manager) activeLocked() int {
	active := 0
	for _, s := range m.sessions {
		if s.State() == StateActive {
			active++
		}
	}
	return active
}

// countingSink tallies decisions for Stats before forwarding to the
// configured sink.
type countingSink struct {
	next DecisionSink
	m    *Manager
}

func (c countingSink) RecordDecision(ctx context.Context, record DecisionRecord) error {
	c.m.mu.Lock()
	c.m.decided++
	c.m.mu.Unlock()
	if c.next == nil {
		return nil
	}
	return c.next.RecordDecision(ctx, record)
}
