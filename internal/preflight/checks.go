package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"vinscan/internal/api"
	"vinscan/internal/config"
	"vinscan/internal/history"
)

const daemonProbeTimeout = 2 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckHistory verifies the decision history database opens with the
// expected schema. A database that does not exist yet passes.
func CheckHistory(ctx context.Context, cfg *config.Config) Result {
	const name = "Decision history"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.History.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	path := cfg.History.Path
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	store, err := history.OpenPath(path)
	if err != nil {
		if errors.Is(err, history.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema mismatch, move the file aside)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d decisions)", path, count)}
}

// ProbeDaemon asks the daemon at cfg's API address for its status.
func ProbeDaemon(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()
	return client.Status(probeCtx)
}

// CheckDaemon reports whether a daemon answers on the configured API address.
func CheckDaemon(ctx context.Context, cfg *config.Config) Result {
	const name = "Daemon"

	status, err := ProbeDaemon(ctx, cfg)
	if err != nil {
		return Result{Name: name, Detail: SummarizeDaemonError(err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("running (pid %d, %d active sessions)", status.PID, status.Sessions.Active),
	}
}

// SummarizeDaemonError turns a ProbeDaemon error into a short status detail.
func SummarizeDaemonError(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "not running"
	case api.IsStatus(err, http.StatusUnauthorized):
		return "auth failed (check api_token)"
	case errors.Is(err, context.DeadlineExceeded):
		return "status check timed out (daemon unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "status check timed out (daemon unresponsive)"
	}
	return err.Error()
}
