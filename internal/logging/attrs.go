package logging

import (
	"log/slog"
	"slices"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error renders err under the "error" key. A nil error still yields an
// attribute so call sites never produce an odd key/value count.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic form slog's logging methods take.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component name. A nil logger yields a
// discarding one.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func HasAttrKey(attrs []Attr, key string) bool {
	return slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == key })
}

const defaultErrorHint = "check the daemon log for details"

// WarnWithContext logs a warning that always carries event_type, error_hint,
// and impact. Missing fields get defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, defaultErrorHint)
	attrs = withDefault(attrs, FieldImpact, "scanning continues")
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error that always carries event_type and
// error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, defaultErrorHint)
	logger.Error(msg, Args(attrs...)...)
}

func withDefault(attrs []Attr, key, value string) []Attr {
	if HasAttrKey(attrs, key) {
		return attrs
	}
	return append(attrs, String(key, value))
}

// RejectionAttrs describes a dropped candidate. Empty tokens and
// non-positive confidences are omitted.
func RejectionAttrs(reason, token string, confidence float64) []Attr {
	attrs := []Attr{
		String(FieldEventType, EventCandidateRejected),
		String(FieldReason, reason),
	}
	if token != "" {
		attrs = append(attrs, String(FieldToken, token))
	}
	if confidence > 0 {
		attrs = append(attrs, Float64(FieldConfidence, confidence))
	}
	return attrs
}

func DecisionAttrs(vin string, evidence int, mean float64) []Attr {
	return []Attr{
		String(FieldEventType, EventDecisionEmitted),
		String(FieldDecisionVIN, vin),
		Int(FieldDecisionEvidence, evidence),
		Float64(FieldDecisionMean, mean),
	}
}
