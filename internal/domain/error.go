package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrLocked             = errors.New("resource is locked by another operation")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// ConfigErrorKind classifies construction-time configuration failures.
type ConfigErrorKind int

const (
	ConfigMissingField ConfigErrorKind = iota + 1
	ConfigInvalidEnvironment
)

func (k ConfigErrorKind) String() string {
	switch k {
	case ConfigMissingField:
		return "missing_field"
	case ConfigInvalidEnvironment:
		return "invalid_environment"
	default:
		return "unknown"
	}
}

// ConfigError is returned by the IMEPay client constructor before any network activity.
type ConfigError struct {
	Kind  ConfigErrorKind
	Field string // config field name, e.g. "apiUser"
	Value string // offending value for ConfigInvalidEnvironment
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ConfigMissingField:
		return fmt.Sprintf("imepay config: %s is missing", e.Field)
	case ConfigInvalidEnvironment:
		return fmt.Sprintf("imepay config: %s should be either live or sandbox, got %q", e.Field, e.Value)
	default:
		return fmt.Sprintf("imepay config: invalid %s", e.Field)
	}
}

// TransportError wraps a connectivity failure of the underlying HTTP client.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("imepay %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GatewayError means the provider answered but the body is not usable.
type GatewayError struct {
	Op         string
	StatusCode int
	Msg        string
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("imepay %s: %s (http %d)", e.Op, e.Msg, e.StatusCode)
	}
	return fmt.Sprintf("imepay %s: %s", e.Op, e.Msg)
}

// CallbackDecodeError is returned when a GET callback payload cannot be decoded.
type CallbackDecodeError struct {
	Reason string
	Parts  int // number of pipe-delimited parts found, when relevant
	Err    error
}

func (e *CallbackDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imepay callback: %s: %v", e.Reason, e.Err)
	}
	return "imepay callback: " + e.Reason
}

func (e *CallbackDecodeError) Unwrap() error { return e.Err }
