package bridge

import (
	"errors"
	"fmt"
)

// ErrSelectorOutOfRange is returned when a sample's selector does not name a slot.
var ErrSelectorOutOfRange = errors.New("slot selector out of range")

// SourceError is a failed call into the controller source. The loops absorb
// it and retry on the next cycle.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string { return fmt.Sprintf("source %s: %v", e.Op, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// HostServiceError is a failed call into the host virtual-device service.
// Slot is -1 when the call is not tied to a slot.
type HostServiceError struct {
	Op   string
	Slot int
	Err  error
}

func (e *HostServiceError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("host %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("host %s (slot %d): %v", e.Op, e.Slot, e.Err)
}
func (e *HostServiceError) Unwrap() error { return e.Err }

// ConfigError is invalid or missing configuration. It is fatal to Initialize.
type ConfigError struct {
	Field  string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "invalid configuration"
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}
func (e *ConfigError) Unwrap() error { return e.Err }
