package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vinscan/internal/vin"
)

type normalizedToken struct {
	Token       string `json:"token"`
	Repaired    bool   `json:"repaired"`
	Substituted bool   `json:"substituted"`
	Valid       bool   `json:"check_digit_ok"`
}

func newNormalizeCommand() *cobra.Command {
	var label bool
	var trimPadding bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "normalize [TEXT]",
		Short:       "Extract VIN-shaped tokens from raw recognizer text",
		Long:        "Fold width, substitute O/Q/I, and list every 17-character window of the argument (or of stdin when no argument is given).",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				text = strings.TrimRight(string(data), "\r\n")
			}

			var tokens []normalizedToken
			for tok := range vin.Extract(text, vin.Options{LabelText: label, TrimPadding: trimPadding}) {
				tokens = append(tokens, normalizedToken{
					Token:       tok.Value,
					Repaired:    tok.Repaired,
					Substituted: tok.Substituted,
					Valid:       vin.Valid(tok.Value),
				})
			}

			if jsonOutput {
				if tokens == nil {
					tokens = []normalizedToken{}
				}
				return writeJSON(cmd, tokens)
			}
			if len(tokens) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No VIN-shaped tokens found")
				return nil
			}
			rows := make([][]string, 0, len(tokens))
			for i, tok := range tokens {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					tok.Token,
					yesNo(tok.Repaired),
					yesNo(tok.Substituted),
					yesNo(tok.Valid),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Token", "Repaired", "Substituted", "Check Digit OK"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&label, "label", false, "Treat input as OCR label text (prefer lines carrying a VIN marker)")
	cmd.Flags().BoolVar(&trimPadding, "trim-padding", false, "Drop leading I/O padding as barcode labels print it")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
