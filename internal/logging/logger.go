package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"vinscan/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // "console" (default) or "json"
	// OutputPaths lists files or the names "stdout" and "stderr". Ignored when
	// Writer is set.
	OutputPaths []string
	Writer      io.Writer
	// Development forces caller locations on every line.
	Development bool
}

// New builds a slog logger. Caller locations are added at debug level or in
// development mode.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)

	w := opts.Writer
	if w == nil {
		paths := opts.OutputPaths
		if len(paths) == 0 {
			paths = []string{"stdout"}
		}
		var err error
		if w, err = openWriters(paths); err != nil {
			return nil, err
		}
	}
	addSource := opts.Development || level <= slog.LevelDebug

	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		return slog.New(newConsoleHandler(w, level, addSource)), nil
	case "json":
		return slog.New(newJSONHandler(w, level, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig builds the logger described by cfg.Logging. Output goes to
// stderr, and when toFile is set also to the daemon log file.
func NewFromConfig(cfg *config.Config, toFile bool) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", OutputPaths: []string{"stderr"}})
	}

	paths := []string{"stderr"}
	if toFile && cfg.Paths.LogDir != "" {
		paths = append(paths, cfg.LogPath())
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}

// parseLevel maps a config level name to slog. Unknown names mean info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openWriters resolves each distinct path to a writer, creating parent
// directories for log files.
func openWriters(paths []string) (io.Writer, error) {
	var names []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(names, p) {
			names = append(names, p)
		}
	}

	writers := make([]io.Writer, 0, len(names))
	for _, name := range names {
		switch name {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory for %s: %w", name, err)
			}
			f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", name, err)
			}
			writers = append(writers, f)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
