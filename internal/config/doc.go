// Package config loads, normalizes, and validates vinscan configuration.
//
// Configuration is read from TOML (default ~/.config/vinscan/config.toml, then
// ./vinscan.toml), merged over Default(), has its paths expanded, picks up
// VINSCAN_API_TOKEN from the environment when the file leaves it empty, and
// is validated before use. Session defaults here seed every session the
// daemon or the scan command starts; callers may still override capacity,
// policy, and threshold per session.
package config
