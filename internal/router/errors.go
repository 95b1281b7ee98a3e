package router

import (
	"errors"
	"fmt"
)

// ErrNoTargets means no target survived validation.
var ErrNoTargets = errors.New("no valid targets configured")

// ConfigError reports an unusable target configuration.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("router config: %s: %v", e.Reason, e.Err)
	}
	return "router config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectivityError means no target produced a response across all attempts.
type ConnectivityError struct {
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no mirror answered after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("no mirror answered after %d attempts", e.Attempts)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }
