// Package daemonctl launches, stops and restarts a background vinscan
// daemon on behalf of the CLI.
//
// Liveness is judged by the daemon's HTTP status endpoint rather than the
// lock file, so a daemon bound to a different api_bind is invisible here.
// Stopping sends SIGTERM to the pid the daemon reports (falling back to the
// pid file) and escalates to SIGKILL after a grace period.
package daemonctl
