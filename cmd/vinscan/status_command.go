package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vinscan/internal/api"
	"vinscan/internal/preflight"
)

type statusReport struct {
	Checks []checkReport      `json:"checks"`
	Daemon *api.DaemonStatus `json:"daemon,omitempty"`
}

type checkReport struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show directory, history and daemon health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, false)
			daemonStatus, daemonErr := preflight.ProbeDaemon(cmd.Context(), cfg)

			if jsonOutput {
				report := statusReport{Daemon: daemonStatus}
				for _, r := range results {
					report.Checks = append(report.Checks, checkReport{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}
				return writeJSON(cmd, report)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, r := range results {
				fmt.Fprintln(stdout, renderStatusLine(r.Name, passFail(r.Passed, statusError), r.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if daemonErr != nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, preflight.SummarizeDaemonError(daemonErr), colorize))
				fmt.Fprintln(stdout, renderStatusLine("API", statusInfo, cfg.Paths.APIBind, colorize))
				return nil
			}
			for _, line := range daemonStatusLines(daemonStatus, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func daemonStatusLines(status *api.DaemonStatus, colorize bool) []string {
	uptime := "unknown"
	if !status.StartedAt.IsZero() {
		uptime = time.Since(status.StartedAt).Truncate(time.Second).String()
	}
	history := "Disabled"
	if status.HistoryEnabled {
		history = fmt.Sprintf("%d decisions in %s", status.Decisions, status.HistoryPath)
	}
	notifications := "Disabled"
	if status.Notifications {
		notifications = "ntfy"
	}
	return []string{
		renderStatusLine("Daemon", passFail(status.Running, statusWarn),
			fmt.Sprintf("running (pid %d, up %s)", status.PID, uptime), colorize),
		renderStatusLine("Run ID", statusInfo, status.RunID, colorize),
		renderStatusLine("Sessions", statusInfo,
			fmt.Sprintf("%d active, %d ended, %d decided", status.Sessions.Active, status.Sessions.Terminated, status.Sessions.Decided), colorize),
		renderStatusLine("Defaults", statusInfo,
			fmt.Sprintf("capacity %d, %s, min confidence %s", status.Defaults.Capacity, status.Defaults.Policy,
				strconv.FormatFloat(status.Defaults.MinConfidence, 'f', -1, 64)), colorize),
		renderStatusLine("History", statusInfo, history, colorize),
		renderStatusLine("Notifications", statusInfo, notifications, colorize),
	}
}
