package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vinscan/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.LogPath()

			initial, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range initial {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(initial) == 0 {
					fmt.Fprintf(out, "No log entries in %s\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, logs.DefaultPollInterval, func(line string) error {
				_, err := fmt.Fprintln(out, line)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Trailing lines to print first")
	return cmd
}
