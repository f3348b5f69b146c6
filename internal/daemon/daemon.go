package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"vinscan/internal/api"
	"vinscan/internal/config"
	"vinscan/internal/history"
	"vinscan/internal/logging"
	"vinscan/internal/session"
)

const reapInterval = 5 * time.Second

// Daemon serves the session manager over HTTP and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *session.Manager
	store   *history.Store
	runID   string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool

	mu         sync.Mutex
	startedAt  time.Time
	cancel     context.CancelFunc
	reaperDone chan struct{}
}

// New constructs a daemon. store may be nil when decision history is
// disabled.
func New(cfg *config.Config, manager *session.Manager, store *history.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || manager == nil {
		return nil, errors.New("daemon requires config and session manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		manager:  manager,
		store:    store,
		runID:    uuid.NewString(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the session reaper and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vinscan daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.manager.Run(runCtx, reapInterval)
	}()

	d.mu.Lock()
	d.startedAt = time.Now().UTC()
	d.cancel = cancel
	d.reaperDone = done
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("vinscan daemon started",
		logging.String("lock", d.lockPath),
		logging.String("run_id", d.runID),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop cancels active sessions, stops serving and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, done := d.cancel, d.reaperDone
	d.cancel, d.reaperDone = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.Error(err),
		)
	}
	d.running.Store(false)
	d.logger.Info("vinscan daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RunID identifies this daemon process in logs and status output.
func (d *Daemon) RunID() string {
	return d.runID
}

// Addr returns the address the API listens on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	defaults := d.manager.Defaults()
	status := api.DaemonStatus{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		RunID:          d.runID,
		StartedAt:      startedAt,
		LockFilePath:   d.lockPath,
		HistoryEnabled: d.store != nil,
		Notifications:  d.cfg.Notifications.NtfyTopic != "",
		Sessions:       d.manager.Stats(),
		Defaults: api.SessionDefaults{
			Capacity:      defaults.Capacity,
			Policy:        defaults.Policy.String(),
			MinConfidence: defaults.MinConfidence,
		},
	}
	if d.store != nil {
		status.HistoryPath = d.store.Path()
		count, err := d.store.Count(ctx)
		if err != nil {
			d.logger.Warn("count recorded decisions", logging.Error(err))
		}
		status.Decisions = count
	}
	return status
}
