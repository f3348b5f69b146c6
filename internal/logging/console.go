package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one key=value line per record:
//
//	2026-03-01T12:00:00Z INFO session [3f2a9c1e]: decision emitted decision_vin=... decision_evidence=3
//
// The component and a shortened session id move into the prefix. Attributes
// bound through WithAttrs are flattened once, when the child handler is made.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	prefix    string // open group path, "" or "a.b."
	bound     []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	child := *h
	child.bound = appendFields(append([]field(nil), h.bound...), h.prefix, attrs...)
	return &child
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.prefix = h.prefix + name + "."
	return &child
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.bound...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.prefix, attr)
		return true
	})

	var component, sessionID string
	rest := make([]field, 0, len(fields))
	for _, f := range lastWins(fields) {
		switch f.key {
		case FieldComponent:
			component = plainString(f.value)
		case FieldSessionID:
			sessionID = plainString(f.value)
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteString(" " + levelLabel(record.Level) + " ")
	if scope := scopeLabel(component, sessionID); scope != "" {
		b.WriteString(scope + ": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		b.WriteString(" " + f.key + "=" + formatValue(f.value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// appendFields flattens attrs into dst, joining group names with dots.
func appendFields(dst []field, prefix string, attrs ...slog.Attr) []field {
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			inner := prefix
			if attr.Key != "" {
				inner += attr.Key + "."
			}
			dst = appendFields(dst, inner, value.Group()...)
			continue
		}
		if attr.Key == "" {
			continue
		}
		dst = append(dst, field{key: prefix + attr.Key, value: value})
	}
	return dst
}

// lastWins drops earlier duplicates, keeping first-seen order with the
// latest value.
func lastWins(fields []field) []field {
	pos := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if i, ok := pos[f.key]; ok {
			out[i] = f
			continue
		}
		pos[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func scopeLabel(component, sessionID string) string {
	if sessionID == "" {
		return component
	}
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	if component == "" {
		return "[" + sessionID + "]"
	}
	return component + " [" + sessionID + "]"
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func plainString(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return strings.Trim(formatValue(v), `"`)
}

// formatValue renders v for key=value output, quoting strings that contain
// spaces, '=' or quotes.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
