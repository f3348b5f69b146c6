package testsupport

import (
	"path/filepath"
	"testing"

	"vinscan/internal/config"
)

// ConfigOption adjusts a generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns the default configuration rooted in a fresh temp
// directory:
//
//	<tmp>/state/history.db
//	<tmp>/logs/
//
// The API binds an ephemeral loopback port and logging is limited to errors.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.History.Path = filepath.Join(cfg.Paths.StateDir, "history.db")
	cfg.Logging.Level = "error"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) { cfg.Paths.APIToken = token }
}

// WithoutHistory disables the decision history database.
func WithoutHistory() ConfigOption {
	return func(cfg *config.Config) { cfg.History.Enabled = false }
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
