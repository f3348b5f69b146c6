package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes: 1 for failures, 2 when a scan ended without a decision.
const (
	exitFailure    = 1
	exitNoDecision = 2
)

func main() {
	err := newRootCommand().Execute()
	switch {
	case err == nil:
		return
	case errors.Is(err, errNoDecision):
		os.Exit(exitNoDecision)
	case errors.Is(err, context.Canceled):
		os.Exit(exitFailure)
	default:
		fmt.Fprintf(os.Stderr, "vinscan: %v\n", err)
		os.Exit(exitFailure)
	}
}

// writeJSON prints v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
