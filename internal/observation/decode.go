package observation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
)

const maxLineBytes = 1 << 20

// Decode reads JSON Lines observations from r in order. Blank lines and
// lines starting with '#' are skipped. Decoding stops at the first error,
// which is yielded with the 1-based line number.
func Decode(r io.Reader) iter.Seq2[Raw, error] {
	return func(yield func(Raw, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 || line[0] == '#' {
				continue
			}
			var raw Raw
			if err := json.Unmarshal(line, &raw); err != nil {
				yield(Raw{}, fmt.Errorf("line %d: decode observation: %w", lineNo, err))
				return
			}
			if err := raw.Validate(); err != nil {
				yield(Raw{}, fmt.Errorf("line %d: %w", lineNo, err))
				return
			}
			if !yield(raw, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Raw{}, fmt.Errorf("read observations: %w", err))
		}
	}
}
