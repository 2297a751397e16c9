package vps

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionLost is reported to every in-flight session when the
	// connection fails, times out or the backend sends a protocol error.
	ErrConnectionLost = errors.New("vps: connection lost")
	// ErrEngineClosed is reported to sessions still in flight when the engine
	// shuts down.
	ErrEngineClosed = errors.New("vps: engine closed")
	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("vps: invalid config")
)

// StatusError is an error status sent by the backend.
type StatusError struct {
	Code        int32
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vps: backend status %d: %s", e.Code, e.Description)
}

func connectionLost(cause error) error {
	if cause == nil {
		return ErrConnectionLost
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, cause)
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
