package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"vinscan/internal/config"
	"vinscan/internal/daemon"
	"vinscan/internal/history"
	"vinscan/internal/logging"
	"vinscan/internal/notifications"
	"vinscan/internal/session"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Stdout mirrors log output to the terminal in addition to the log file.
	Stdout bool
}

// Run starts the vinscan daemon and blocks until SIGINT, SIGTERM or cmdCtx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	outputs := []string{cfg.LogPath()}
	if opts.Stdout {
		outputs = append([]string{"stdout"}, outputs...)
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	defaults, err := session.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("session defaults: %w", err)
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			logging.ErrorWithContext(logger, "open history store", "history_open_failed",
				logging.String(logging.FieldErrorHint, "check history.path permissions or set history.enabled = false"),
				logging.Error(err),
			)
			return err
		}
	}
	var sinks []session.DecisionSink
	if store != nil {
		sinks = append(sinks, store)
	}
	if notifier := notifications.NewService(cfg); notifier.Enabled() {
		sinks = append(sinks, notifier)
	}
	defaults.Sink = session.CombineSinks(sinks...)

	manager := session.NewManager(session.ManagerOptions{
		Defaults:    defaults,
		IdleTimeout: time.Duration(cfg.Session.IdleTimeoutSeconds) * time.Second,
		Retention:   time.Duration(cfg.Session.RetentionSeconds) * time.Second,
		MaxActive:   cfg.Session.MaxActive,
		Logger:      logger,
	})

	d, err := daemon.New(cfg, manager, store, logger)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	logConfigSnapshot(logger, cfg, d.RunID())

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.String(logging.FieldErrorHint, "check api_bind and that no other daemon holds "+cfg.LockPath()),
			logging.String(logging.FieldImpact, "no sessions can be served"),
			logging.Error(err),
		)
		return err
	}

	// Written only once the lock is held, so a second daemon that loses the
	// lock never clobbers the running daemon's pid file.
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("vinscan daemon shutting down",
		logging.Int("decided", manager.Stats().Decided),
	)
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config, runID string) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("run_id", runID),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.Int("capacity", cfg.Session.Capacity),
		logging.String("policy", cfg.Session.Policy),
		logging.Float64("min_confidence", cfg.Session.MinConfidence),
		logging.Int("max_active", cfg.Session.MaxActive),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
