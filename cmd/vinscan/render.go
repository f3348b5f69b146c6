package main

import (
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws a rounded go-pretty table. Rows shorter than headers are
// padded with blank cells; extra cells are dropped.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	toRow := func(cells []string) table.Row {
		row := make(table.Row, len(headers))
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		return row
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render() + "\n"
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusStyles = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// renderStatusLine formats "  Label:   [KIND] message" with the label padded
// to statusLabelWidth.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[statusInfo]
	if kind >= 0 && int(kind) < len(statusStyles) {
		style = statusStyles[kind]
	}

	var b strings.Builder
	b.WriteString(statusIndent)
	b.WriteString(label + ":")
	if pad := statusLabelWidth - len(label) - 1; pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteString(" [" + style.label + "]")
	if message != "" {
		b.WriteString(" " + message)
	}
	if !colorize {
		return b.String()
	}
	return style.color + b.String() + ansiReset
}

// passFail maps a check outcome to OK or the given failure kind.
func passFail(passed bool, failure statusKind) statusKind {
	if passed {
		return statusOK
	}
	return failure
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = ansiBlue + lines[i] + ansiReset
		}
	}
	return lines
}

// shouldColorize reports whether w is a terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
