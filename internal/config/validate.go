package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.Capacity <= 0 {
		return errors.New("session.capacity must be positive")
	}
	if c.Session.Policy != "strict" && c.Session.Policy != "lenient" {
		return fmt.Errorf("session.policy must be strict or lenient, got %q", c.Session.Policy)
	}
	if c.Session.MinConfidence <= 0 || c.Session.MinConfidence > 1 {
		return errors.New("session.min_confidence must be in (0,1]")
	}
	if c.Session.MaxLineSkewDegrees < 0 || c.Session.MaxLineSkewDegrees > 90 {
		return errors.New("session.max_line_skew_degrees must be between 0 and 90")
	}
	if c.Session.IdleTimeoutSeconds < 0 {
		return errors.New("session.idle_timeout_seconds must be non-negative")
	}
	if c.Session.RetentionSeconds < 0 {
		return errors.New("session.retention_seconds must be non-negative")
	}
	if c.Session.MaxActive <= 0 {
		return errors.New("session.max_active must be positive")
	}
	return nil
}

func (c *Config) validateScoring() error {
	for name, weight := range c.Scoring.Symbology {
		if weight <= 0 || weight > 1 {
			return fmt.Errorf("scoring.symbology.%s must be in (0,1]", name)
		}
	}
	if c.Scoring.Barcode <= 0 || c.Scoring.Barcode > 1 {
		return errors.New("scoring.barcode must be in (0,1]")
	}
	if c.Scoring.OCR <= 0 || c.Scoring.OCR > 1 {
		return errors.New("scoring.ocr must be in (0,1]")
	}
	factors := []struct {
		name  string
		value float64
	}{
		{"scoring.repair_factor", c.Scoring.RepairFactor},
		{"scoring.ambiguity_factor", c.Scoring.AmbiguityFactor},
		{"scoring.large_box_factor", c.Scoring.LargeBoxFactor},
		{"scoring.small_box_factor", c.Scoring.SmallBoxFactor},
	}
	for _, f := range factors {
		if f.value <= 0 {
			return fmt.Errorf("%s must be positive", f.name)
		}
	}
	if c.Scoring.SmallMaxWidth > c.Scoring.LargeMinWidth || c.Scoring.SmallMaxHeight > c.Scoring.LargeMinHeight {
		return errors.New("scoring small box thresholds must not exceed large box thresholds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be non-negative")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		u, err := url.Parse(topic)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains([]string{"console", "json"}, c.Logging.Format) {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
