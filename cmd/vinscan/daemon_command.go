package main

import (
	"github.com/spf13/cobra"

	"vinscan/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var stdout bool
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the vinscan HTTP daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.resolvedLogLevel(cfg),
				Development: development,
				Stdout:      stdout,
			})
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", true, "Mirror daemon logs to stdout")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in every log line")
	return cmd
}
