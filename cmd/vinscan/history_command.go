package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vinscan/internal/config"
	"vinscan/internal/history"
	"vinscan/internal/preflight"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var vinFilter string
	var since time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withHistory(cmd, cfg, func(store *history.Store) error {
				q := history.Query{Limit: limit, VIN: vinFilter}
				if since > 0 {
					q.Since = time.Now().Add(-since)
				}
				entries, err := store.List(cmd.Context(), q)
				if err != nil {
					return err
				}
				if jsonOutput {
					if entries == nil {
						entries = []history.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No decisions recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Decided", "VIN", "Evidence", "Mean", "Policy", "Session"},
					buildHistoryRows(entries),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Maximum decisions to list")
	cmd.Flags().StringVar(&vinFilter, "vin", "", "Only list decisions for this VIN")
	cmd.Flags().DurationVar(&since, "since", 0, "Only list decisions newer than this (e.g. 24h)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete decisions older than a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withHistory(cmd, cfg, func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d decisions\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	return cmd
}

func withHistory(cmd *cobra.Command, cfg *config.Config, fn func(*history.Store) error) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("decision history is disabled (set history.enabled = true)")
	}
	if check := preflight.CheckHistory(cmd.Context(), cfg); !check.Passed {
		return fmt.Errorf("decision history unavailable: %s", check.Detail)
	}
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func buildHistoryRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.DecidedAt.Local().Format("2006-01-02 15:04:05"),
			entry.VIN,
			fmt.Sprintf("%d/%d", entry.EvidenceCount, entry.Capacity),
			strconv.FormatFloat(entry.MeanConfidence, 'f', 3, 64),
			entry.Policy.String(),
			shortID(entry.SessionID),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
