package services

import (
	"context"
	"strings"
)

type contextKey uint8

const (
	sessionIDKey contextKey = iota + 1
	sourceKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithSessionID annotates ctx with a scanning session handle. Blank handles
// leave ctx untouched.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session handle stamped by WithSessionID.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, sessionIDKey)
}

// WithSource annotates ctx with the recognizer that produced an observation
// (barcode or ocr).
func WithSource(ctx context.Context, source string) context.Context {
	return withValue(ctx, sourceKey, source)
}

func SourceFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, sourceKey)
}

// WithRequestID annotates ctx with the X-Request-ID of an API call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, requestIDKey)
}
