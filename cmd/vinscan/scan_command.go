package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"vinscan/internal/aggregate"
	"vinscan/internal/api"
	"vinscan/internal/config"
	"vinscan/internal/history"
	"vinscan/internal/notifications"
	"vinscan/internal/observation"
	"vinscan/internal/preflight"
	"vinscan/internal/session"
	"vinscan/internal/vin"
)

var errNoDecision = errors.New("no decision reached")

type scanFlags struct {
	capacity      int
	policy        string
	minConfidence float64
	noHistory     bool
	noNotify      bool
	remote        bool
	timeout       time.Duration
	jsonOutput    bool
}

type scanResult struct {
	Session  session.Info        `json:"session"`
	Decision *aggregate.Decision `json:"decision,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan [FILE...]",
		Short: "Replay recorded observations through a session",
		Long: "Read JSON Lines observation recordings (stdin when no file or \"-\" is given), " +
			"feed them concurrently into one session and print the decision. " +
			"With --remote the session runs inside the daemon instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			feeds, closeFeeds, err := openFeeds(cmd, args)
			if err != nil {
				return err
			}
			defer closeFeeds()

			runCtx := cmd.Context()
			if flags.timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, flags.timeout)
				defer cancel()
			}

			var result scanResult
			if flags.remote {
				result, err = scanRemote(runCtx, cmd, cfg, flags, feeds)
			} else {
				result, err = scanLocal(runCtx, cmd, ctx, cfg, flags, feeds)
			}
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				printScanResult(cmd.OutOrStdout(), result)
			}
			if result.Decision == nil {
				return errNoDecision
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.capacity, "capacity", 0, "Samples to collect before deciding (default from config)")
	cmd.Flags().StringVar(&flags.policy, "policy", "", "Validation policy: strict or lenient (default from config)")
	cmd.Flags().Float64Var(&flags.minConfidence, "min-confidence", 0, "Confidence a candidate must exceed (default from config)")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "Do not record the decision in the history database")
	cmd.Flags().BoolVar(&flags.noNotify, "no-notify", false, "Do not publish the decision to ntfy")
	cmd.Flags().BoolVar(&flags.remote, "remote", false, "Run the session in the daemon over its HTTP API")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Give up after this long (0 waits for the recordings to end)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func openFeeds(cmd *cobra.Command, args []string) ([]observation.Feed, func(), error) {
	if len(args) == 0 {
		args = []string{"-"}
	}
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	feeds := make([]observation.Feed, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			feeds = append(feeds, observation.Feed{Name: "stdin", Reader: cmd.InOrStdin()})
			continue
		}
		path, err := config.ExpandPath(arg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open recording: %w", err)
		}
		files = append(files, f)
		feeds = append(feeds, observation.Feed{Name: path, Reader: f})
	}
	return feeds, closeAll, nil
}

func scanLocal(ctx context.Context, cmd *cobra.Command, cmdCtx *commandContext, cfg *config.Config, flags scanFlags, feeds []observation.Feed) (scanResult, error) {
	opts, err := session.OptionsFromConfig(cfg)
	if err != nil {
		return scanResult{}, err
	}
	if flags.capacity != 0 {
		opts.Capacity = flags.capacity
	}
	if flags.policy != "" {
		policy, err := vin.ParsePolicy(flags.policy)
		if err != nil {
			return scanResult{}, err
		}
		opts.Policy = policy
	}
	if flags.minConfidence != 0 {
		opts.MinConfidence = flags.minConfidence
	}
	logger, err := cmdCtx.commandLogger(cmd, cfg)
	if err != nil {
		return scanResult{}, err
	}
	opts.Logger = logger

	var sinks []session.DecisionSink
	if cfg.History.Enabled && !flags.noHistory {
		if check := preflight.CheckHistory(ctx, cfg); !check.Passed {
			return scanResult{}, fmt.Errorf("decision history unavailable: %s", check.Detail)
		}
		store, err := history.Open(cfg)
		if err != nil {
			return scanResult{}, err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}
	if notifier := notifications.NewService(cfg); notifier.Enabled() && !flags.noNotify {
		sinks = append(sinks, notifier)
	}
	opts.Sink = session.CombineSinks(sinks...)

	s, err := session.New(opts)
	if err != nil {
		return scanResult{}, err
	}

	var decided atomic.Pointer[aggregate.Decision]
	err = observation.Pump(ctx, feeds, func(ctx context.Context, raw observation.Raw) (bool, error) {
		decision, err := s.Submit(ctx, raw)
		switch {
		case errors.Is(err, session.ErrSessionTerminated):
			return true, nil
		case err != nil:
			return false, err
		case decision != nil:
			decided.Store(decision)
			return true, nil
		}
		return false, nil
	})
	if decided.Load() == nil {
		s.Cancel()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return scanResult{}, err
	}
	return scanResult{Session: s.Describe(), Decision: decided.Load()}, nil
}

func scanRemote(ctx context.Context, cmd *cobra.Command, cfg *config.Config, flags scanFlags, feeds []observation.Feed) (scanResult, error) {
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return scanResult{}, err
	}
	id, err := client.StartSession(ctx, api.StartSessionRequest{
		Capacity:      flags.capacity,
		Policy:        flags.policy,
		MinConfidence: flags.minConfidence,
	})
	if err != nil {
		return scanResult{}, fmt.Errorf("start remote session: %w", err)
	}

	var decided atomic.Pointer[aggregate.Decision]
	err = observation.Pump(ctx, feeds, func(ctx context.Context, raw observation.Raw) (bool, error) {
		resp, err := client.Submit(ctx, id, raw)
		switch {
		case api.IsStatus(err, http.StatusConflict):
			return true, nil
		case err != nil:
			return false, err
		case resp.Decision != nil:
			decided.Store(resp.Decision)
			return true, nil
		}
		return false, nil
	})

	// The request context may already be done; describe and cancel on a
	// fresh one.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if decided.Load() == nil {
		if cancelErr := client.Cancel(cleanupCtx, id); cancelErr != nil && !api.IsStatus(cancelErr, http.StatusConflict) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warn: cancel remote session %s: %v\n", id, cancelErr)
		}
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return scanResult{}, err
	}
	info, err := client.Session(cleanupCtx, id)
	if err != nil {
		return scanResult{}, fmt.Errorf("describe remote session: %w", err)
	}
	return scanResult{Session: *info, Decision: decided.Load()}, nil
}

func printScanResult(out io.Writer, result scanResult) {
	info := result.Session
	fmt.Fprintf(out, "Session %s (%s, capacity %d, %d observations)\n", info.ID, info.Policy, info.Capacity, info.Observations)
	if result.Decision == nil {
		fmt.Fprintf(out, "No decision: %d of %d samples collected\n", info.Buffered, info.Capacity)
		return
	}
	decision := result.Decision
	fmt.Fprintf(out, "Decision: %s (evidence %d, mean confidence %.3f)\n", decision.VIN, decision.EvidenceCount, decision.MeanConfidence)
	if len(decision.Tally) == 0 {
		return
	}
	rows := make([][]string, 0, len(decision.Tally))
	for _, group := range decision.Tally {
		rows = append(rows, []string{
			group.VIN,
			strconv.Itoa(group.Count),
			strconv.FormatFloat(group.MeanConfidence, 'f', 3, 64),
			strconv.FormatFloat(group.Score, 'f', 3, 64),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"VIN", "Votes", "Mean", "Score"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
}
