package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vinscan/internal/api"
	"vinscan/internal/config"
	"vinscan/internal/preflight"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates nothing answers on the configured API address.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State  StartState
	Status *api.DaemonStatus
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts a detached vinscan daemon process. Its logs go to the log
// file only.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "--stdout=false"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForDaemon polls the status endpoint until the daemon answers.
func WaitForDaemon(ctx context.Context, cfg *config.Config, timeout time.Duration) (*api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		status, err := preflight.ProbeDaemon(ctx, cfg)
		if err == nil && status.Running {
			return status, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			break
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches a daemon unless one already answers.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := preflight.ProbeDaemon(ctx, cfg); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, Status: status}, nil
	} else if err != nil && !isDaemonUnavailable(err) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForDaemon(ctx, cfg, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Status: status}, nil
}

// WaitForShutdown waits for the API to stop answering.
func WaitForShutdown(ctx context.Context, cfg *config.Config, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		_, err := preflight.ProbeDaemon(ctx, cfg)
		if err != nil && isDaemonUnavailable(err) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon did not stop within %s", timeout)
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// ReadPID parses the daemon pid file. A missing file yields 0 and no error.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(value)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q holds %q", path, value)
	}
	return pid, nil
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills the process
// if the API still answers after gracePeriod.
func StopAndTerminate(ctx context.Context, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := preflight.ProbeDaemon(ctx, cfg)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	pid := status.PID
	if pid <= 0 {
		pid, err = ReadPID(cfg.PIDPath())
		if err != nil {
			return StopResult{}, err
		}
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", cfg.PIDPath())
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	result := StopResult{PID: pid}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if err := WaitForShutdown(ctx, cfg, gracePeriod); err == nil {
		return result, nil
	}

	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(cfg.PIDPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, cfg, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, os.ErrNotExist)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
