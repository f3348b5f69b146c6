package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned by New and Manager.Start for
	// unusable options. It is wrapped with the offending field.
	ErrInvalidConfiguration = errors.New("invalid session configuration")
	// ErrSessionTerminated is returned when observations or cancellation
	// arrive after the session has decided or been cancelled.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrUnknownSession is returned for handles the manager does not know.
	ErrUnknownSession = errors.New("unknown session")
	// ErrTooManySessions is returned when the manager is at its active limit.
	ErrTooManySessions = errors.New("too many active sessions")
)

func invalidConfig(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfiguration, field, fmt.Sprintf(format, args...))
}
