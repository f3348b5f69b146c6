package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// newJSONHandler emits one JSON object per record. Timestamps land under "ts"
// in UTC, levels are lowercase, and durations are written in Go notation so
// that decision latencies stay readable in the daemon log file.
func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: jsonAttr,
	})
}

func jsonAttr(_ []string, attr slog.Attr) slog.Attr {
	value := attr.Value
	switch attr.Key {
	case slog.TimeKey:
		if value.Kind() != slog.KindTime {
			return slog.Attr{Key: "ts", Value: value}
		}
		return slog.String("ts", value.Time().UTC().Format(time.RFC3339Nano))
	case slog.LevelKey:
		return slog.String(attr.Key, strings.ToLower(value.String()))
	case slog.SourceKey:
		src, ok := value.Any().(*slog.Source)
		if !ok || src == nil {
			return attr
		}
		return slog.String(attr.Key, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
	}
	if value.Kind() == slog.KindDuration {
		return slog.String(attr.Key, value.Duration().String())
	}
	return attr
}
