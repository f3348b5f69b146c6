package logging

import (
	"context"
	"log/slog"

	"vinscan/internal/services"
)

// ContextFields returns the session, source, and correlation attributes
// stamped on ctx by the services helpers.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	lookups := []struct {
		key  string
		from func(context.Context) (string, bool)
	}{
		{FieldSessionID, services.SessionIDFromContext},
		{FieldSource, services.SourceFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	}
	var fields []slog.Attr
	for _, l := range lookups {
		if v, ok := l.from(ctx); ok {
			fields = append(fields, slog.String(l.key, v))
		}
	}
	return fields
}

// WithContext returns logger with the fields from ContextFields attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
