package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Session contains the defaults applied to every scanning session.
type Session struct {
	Capacity           int     `toml:"capacity"`
	Policy             string  `toml:"policy"`
	MinConfidence      float64 `toml:"min_confidence"`
	MaxLineSkewDegrees float64 `toml:"max_line_skew_degrees"`
	IdleTimeoutSeconds int     `toml:"idle_timeout_seconds"`
	RetentionSeconds   int     `toml:"retention_seconds"`
	MaxActive          int     `toml:"max_active"`
}

// Scoring contains the confidence weights. Base weights are in (0,1];
// factors are multipliers applied on top.
type Scoring struct {
	Symbology       map[string]float64 `toml:"symbology"`
	Barcode         float64            `toml:"barcode"`
	OCR             float64            `toml:"ocr"`
	RepairFactor    float64            `toml:"repair_factor"`
	AmbiguityFactor float64            `toml:"ambiguity_factor"`
	LargeBoxFactor  float64            `toml:"large_box_factor"`
	SmallBoxFactor  float64            `toml:"small_box_factor"`
	LargeMinWidth   int                `toml:"large_min_width"`
	LargeMinHeight  int                `toml:"large_min_height"`
	SmallMaxWidth   int                `toml:"small_max_width"`
	SmallMaxHeight  int                `toml:"small_max_height"`
}

// History contains configuration for the decision history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains the ntfy settings for decision alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vinscan.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories, API bind address and token
//   - Session: capacity, policy, threshold and lifecycle timeouts
//   - Scoring: symbology base weights and confidence multipliers
//   - History: SQLite decision history
//   - Notifications: ntfy alerts for emitted decisions
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Session       Session       `toml:"session"`
	Scoring       Scoring       `toml:"scoring"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the expanded ~/.config/vinscan/config.toml.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the configuration at path, or the first existing candidate
// when path is empty, applies defaults and validates the result. It returns
// the resolved path and whether that file existed; a missing file yields the
// defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// decodeFile strictly decodes TOML; unknown keys are errors so that a typo in
// a threshold name never silently falls back to the default.
func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath picks the file Load reads. An explicit path is used as
// is. Otherwise the user config is preferred over ./vinscan.toml, and the
// user config path is returned when neither exists.
func resolveConfigPath(path string) (string, bool, error) {
	var candidates []string
	if path != "" {
		candidates = []string{path}
	} else {
		candidates = []string{defaultConfigPath, "vinscan.toml"}
	}

	var first string
	for _, candidate := range candidates {
		expanded, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if first == "" {
			first = expanded
		}
		info, err := os.Stat(expanded)
		switch {
		case err == nil && !info.IsDir():
			return expanded, true, nil
		case err == nil && path != "":
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		case err != nil && !errors.Is(err, fs.ErrNotExist) && path != "":
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return first, false, nil
}

// EnsureDirectories creates the state, log, and history directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir}
	if c.History.Enabled {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the flock file that keeps a second daemon from starting.
func (c *Config) LockPath() string { return filepath.Join(c.Paths.StateDir, "vinscan.lock") }

// PIDPath is where the daemon records its process id for "vinscan stop".
func (c *Config) PIDPath() string { return filepath.Join(c.Paths.StateDir, "vinscan.pid") }

func (c *Config) LogPath() string { return filepath.Join(c.Paths.LogDir, "vinscan.log") }

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		pathValue = filepath.Join(home, strings.TrimPrefix(pathValue, "~"))
	}
	absolute, err := filepath.Abs(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// SampleConfig returns the commented sample written by "vinscan config init".
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path, creating parent
// directories.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
