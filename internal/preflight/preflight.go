package preflight

import (
	"context"

	"vinscan/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem and history checks for the given config.
// The daemon probe is opt-in since a stopped daemon is not an error for
// offline commands.
func RunAll(ctx context.Context, cfg *config.Config, includeDaemon bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckHistory(ctx, cfg),
	}
	if includeDaemon {
		results = append(results, CheckDaemon(ctx, cfg))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
