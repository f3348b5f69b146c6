package vin

import (
	"iter"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Token is one 17-character window extracted from raw text.
type Token struct {
	Value string
	// Repaired is set when the window had to be cut out of longer text or
	// padding was trimmed in front of it.
	Repaired bool
	// Substituted is set when the window contains a character that was
	// mapped from O, I or Q.
	Substituted bool
}

// Options tunes extraction for the kind of text being scanned.
type Options struct {
	// LabelText treats the input as free-form OCR output: it is split into
	// lines, lines carrying a VIN marker are preferred, and the marker is
	// stripped before substitution.
	LabelText bool
	// TrimPadding drops leading I/O characters that barcode labels prepend
	// to the VIN.
	TrimPadding bool
}

var (
	// markerPattern finds a VIN marker inside a label line. The marker may be
	// glued to the number ("VIN1HG...") but must not sit inside a word such
	// as "DRIVING".
	markerPattern = regexp.MustCompile(`(?i)(?:^|[^A-Z0-9])VIN[\s:#-]*`)
	// leadingMarker matches a marker prefix on any input, barcode payloads
	// included.
	leadingMarker = regexp.MustCompile(`(?i)^[\s:#-]*VIN[\s:#-]*`)
)

// Normalize yields every 17-character VIN-shaped window found in raw, left
// to right. The sequence is lazy and meant to be consumed once.
func Normalize(raw string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for tok := range Extract(raw, Options{}) {
			if !yield(tok.Value) {
				return
			}
		}
	}
}

// Extract yields the windows of raw along with the repair and substitution
// flags the scorer needs.
func Extract(raw string, opts Options) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		if !opts.LabelText {
			extractLine(raw, opts.TrimPadding, yield)
			return
		}
		for _, line := range labelLines(raw) {
			if !extractLine(line, opts.TrimPadding, yield) {
				return
			}
		}
	}
}

// labelLines splits OCR text into lines, keeps only the lines containing
// the VIN marker when there are any, and strips the marker from them.
func labelLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		loc := markerPattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		marked = append(marked, line[loc[1]:])
	}
	if len(marked) > 0 {
		return marked
	}
	return lines
}

// extractLine scans one line and reports false when the consumer stopped.
func extractLine(raw string, trimPadding bool, yield func(Token) bool) bool {
	text := strings.ToUpper(width.Fold.String(raw))
	// The marker goes before substitution; otherwise "VIN" becomes "V1N"
	// and joins the number in one legal run.
	text = stripMarker(text)
	trimmed := false
	if trimPadding {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
		stripped := strings.TrimLeft(text, "IO")
		trimmed = len(stripped) != len(text)
		text = stripped
	}

	chars, substituted := substitute(text)
	repaired := trimmed || len(chars) != Length

	start := -1
	for i := 0; i <= len(chars); i++ {
		legal := i < len(chars) && IsLegal(chars[i])
		if legal {
			if start < 0 {
				start = i
			}
			continue
		}
		if start < 0 {
			continue
		}
		for w := start; w+Length <= i; w++ {
			tok := Token{
				Value:       string(chars[w : w+Length]),
				Repaired:    repaired,
				Substituted: anySet(substituted[w : w+Length]),
			}
			if !yield(tok) {
				return false
			}
		}
		start = -1
	}
	return true
}

// stripMarker removes a leading VIN marker. A VIN never contains I, so no
// real VIN starts with "VIN".
func stripMarker(text string) string {
	if loc := leadingMarker.FindStringIndex(text); loc != nil {
		return text[loc[1]:]
	}
	return text
}

// substitute maps confusable letters, drops separators, and replaces any
// remaining non-ASCII rune with a run breaker.
func substitute(text string) ([]byte, []bool) {
	chars := make([]byte, 0, len(text))
	flags := make([]bool, 0, len(text))
	for _, r := range text {
		switch {
		case unicode.IsSpace(r), r == ':', r == '-':
			continue
		case r == 'O', r == 'Q':
			chars = append(chars, '0')
			flags = append(flags, true)
		case r == 'I':
			chars = append(chars, '1')
			flags = append(flags, true)
		case r < unicode.MaxASCII:
			chars = append(chars, byte(r))
			flags = append(flags, false)
		default:
			chars = append(chars, '?')
			flags = append(flags, false)
		}
	}
	return chars, flags
}

func anySet(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}
