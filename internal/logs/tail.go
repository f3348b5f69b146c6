package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const maxLineBytes = 1024 * 1024

// DefaultPollInterval is how often Follow checks for new lines.
const DefaultPollInterval = 250 * time.Millisecond

// Last returns up to n trailing lines of the file at path and the offset of
// its end. A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, size, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if n <= 0 {
		return nil, size, nil
	}

	ring := make([]string, n)
	count := 0
	next := 0
	err = scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % n
		if count < n {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count == n {
		for i := range count {
			lines[i] = ring[(next+i)%n]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, end, nil
}

// ReadFrom returns the complete lines written after offset and the offset
// to continue from. An offset past the end of the file restarts at 0.
func ReadFrom(path string, offset int64) ([]string, int64, error) {
	file, size, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if offset < 0 || offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial trailing line is left for the next read.
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, trimNewline(line))
	}
	return lines, offset, nil
}

// Follow polls path for lines appended after offset and hands each to emit
// until ctx is done or emit fails. Cancellation is not reported as an error.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func(string) error) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, next, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			if err := emit(line); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return file, info.Size(), nil
}

func scanLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	return nil
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
