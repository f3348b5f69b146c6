// Package notifications publishes emitted VIN decisions to ntfy.
//
// NewService returns a no-op implementation when notifications.ntfy_topic is
// empty, so callers can always add the service to a session.MultiSink. Every
// Service is itself a session.DecisionSink.
package notifications
