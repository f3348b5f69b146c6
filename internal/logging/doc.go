// Package logging assembles structured slog loggers and formatting helpers used
// across vinscan.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers that tag log lines with session
// handles, recognizer sources, and correlation IDs. Standard field and event
// names live here so rejection and decision events look the same whether
// they come from the daemon or an offline scan.
package logging
