package main

import (
	"github.com/spf13/cobra"
)

const (
	groupEngine = "engine"
	groupDaemon = "daemon"
	groupAdmin  = "admin"
)

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag string
	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "vinscan",
		Short:         "Decide vehicle identification numbers from noisy barcode and OCR reads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupEngine, Title: "Recognition:"},
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
		&cobra.Group{ID: groupAdmin, Title: "Administration:"},
	)
	addToGroup(rootCmd, groupEngine,
		newValidateCommand(),
		newNormalizeCommand(),
		newScanCommand(ctx),
		newHistoryCommand(ctx),
	)
	addToGroup(rootCmd, groupDaemon, newDaemonCommand(ctx), newStatusCommand(ctx), newLogsCommand(ctx))
	addToGroup(rootCmd, groupDaemon, newDaemonControlCommands(ctx)...)
	addToGroup(rootCmd, groupAdmin, newConfigCommand(ctx), newTestNotifyCommand(ctx))

	return rootCmd
}

func addToGroup(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		root.AddCommand(cmd)
	}
}
