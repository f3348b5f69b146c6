package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vinscan/internal/daemonctl"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

// newDaemonControlCommands returns start, stop, and restart, which manage a
// background "vinscan daemon" process through its HTTP API.
func newDaemonControlCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newRestartCommand(ctx),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), cfg, exe, daemonLaunchOptions(ctx), startWaitTimeout)
			if err != nil {
				return err
			}
			if result.State == daemonctl.StartStateAlreadyRunning {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon already running (pid %d)\n", result.Status.PID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (pid %d, listening on %s)\n", result.Status.PID, cfg.Paths.APIBind)
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the session daemon; open sessions are discarded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(cmd.Context(), cfg, stopGracePeriod)
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			case err != nil:
				return err
			}
			reportStopped(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the session daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.Restart(cmd.Context(), cfg, exe, daemonLaunchOptions(ctx), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			if result.WasRunning {
				reportStopped(cmd.OutOrStdout(), result.Stop)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon restarted (pid %d)\n", result.Start.Status.PID)
			return nil
		},
	}
}

func reportStopped(out io.Writer, result daemonctl.StopResult) {
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon ignored SIGTERM; killed pid %d\n", result.PID)
	}
	fmt.Fprintln(out, "Daemon stopped")
}

// daemonLaunchOptions forwards --config and --log-level to the child.
func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return opts
}
