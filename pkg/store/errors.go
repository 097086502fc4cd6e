package store

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every construction error.
var ErrInvalidConfig = errors.New("store: invalid configuration")

// ConfigError reports a non-positive bound passed to New.
type ConfigError struct {
	Field string
	Value any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("store: %s must be positive, got %v", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
