package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"vinscan/internal/vin"
)

type validationRow struct {
	Input    string `json:"input"`
	Shape    bool   `json:"shape"`
	Expected string `json:"expected_check_digit,omitempty"`
	Actual   string `json:"actual_check_digit,omitempty"`
	Strict   bool   `json:"strict"`
	Lenient  bool   `json:"lenient"`
}

func newValidateCommand() *cobra.Command {
	var policyFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "validate [VIN...]",
		Short:       "Check VIN shape and check digit",
		Long:        "Check each argument (or each stdin line when no arguments are given) against the VIN shape and the ISO 3779 check digit.",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := vin.ParsePolicy(policyFlag)
			if err != nil {
				return err
			}
			inputs := args
			if len(inputs) == 0 {
				inputs, err = readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no VINs given")
			}

			rows := make([]validationRow, 0, len(inputs))
			failed := 0
			for _, input := range inputs {
				row := validateOne(input)
				if !policy.Accepts(row.Input) {
					failed++
				}
				rows = append(rows, row)
			}

			if jsonOutput {
				if err := writeJSON(cmd, rows); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"VIN", "Shape", "Check Digit", "Strict", "Lenient"},
					validationTableRows(rows),
					nil,
				))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d values fail the %s policy", failed, len(rows), policy)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policyFlag, "policy", "strict", "Policy deciding the exit status (strict or lenient)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func validateOne(input string) validationRow {
	token := strings.ToUpper(strings.TrimSpace(input))
	row := validationRow{
		Input:   token,
		Shape:   vin.ShapeOK(token),
		Strict:  vin.PolicyStrict.Accepts(token),
		Lenient: vin.PolicyLenient.Accepts(token),
	}
	if check, ok := vin.CheckDigit(token); ok {
		row.Expected = string(check)
		row.Actual = string(token[8])
	}
	return row
}

func validationTableRows(rows []validationRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		check := "-"
		if row.Expected != "" {
			check = fmt.Sprintf("%s (expected %s)", row.Actual, row.Expected)
		}
		out = append(out, []string{row.Input, yesNo(row.Shape), check, yesNo(row.Strict), yesNo(row.Lenient)})
	}
	return out
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}
