package config

import "maps"

const (
	defaultConfigPath         = "~/.config/vinscan/config.toml"
	defaultStateDir           = "~/.local/share/vinscan"
	defaultLogDir             = "~/.local/share/vinscan/logs"
	defaultHistoryPath        = "~/.local/share/vinscan/history.db"
	defaultAPIBind            = "127.0.0.1:7491"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultCapacity           = 15
	defaultPolicy             = "strict"
	defaultMinConfidence      = 0.7
	defaultMaxLineSkewDegrees = 10
	defaultIdleTimeoutSeconds = 120
	defaultRetentionSeconds   = 600
	defaultMaxActiveSessions  = 64
	defaultNtfyTimeoutSeconds = 10
)

var defaultSymbologyWeights = map[string]float64{
	"code128":     0.95,
	"code39":      0.90,
	"data_matrix": 0.85,
	"qr_code":     0.95,
	"pdf417":      0.90,
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Session: Session{
			Capacity:           defaultCapacity,
			Policy:             defaultPolicy,
			MinConfidence:      defaultMinConfidence,
			MaxLineSkewDegrees: defaultMaxLineSkewDegrees,
			IdleTimeoutSeconds: defaultIdleTimeoutSeconds,
			RetentionSeconds:   defaultRetentionSeconds,
			MaxActive:          defaultMaxActiveSessions,
		},
		Scoring: Scoring{
			Symbology:       maps.Clone(defaultSymbologyWeights),
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
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
