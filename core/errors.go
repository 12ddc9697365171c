package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Lookup errors
	ErrNotFound = errors.New("not found")

	// Input errors
	ErrInvalidInput = errors.New("invalid input")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Storage errors
	ErrConnectionFailed   = errors.New("connection failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrCorruptedState     = errors.New("corrupted persisted state")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Lifecycle errors
	ErrSessionClosed  = errors.New("session closed")
	ErrAlreadyStarted = errors.New("already started")
)

// StoreError provides structured error information with context
// It implements the error interface and supports error wrapping
type StoreError struct {
	Op      string // Operation that failed (e.g., "cart.Add")
	Kind    string // Error kind (e.g., "storage", "auth", "config")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *StoreError) Error() string {
	if e.Op != "" && e.Err != nil {
		op := e.Op
		if e.ID != "" {
			op = fmt.Sprintf("%s [%s]", e.Op, e.ID)
		}
		if e.Message != "" {
			return fmt.Sprintf("%s: %s: %v", op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(op, kind string, err error) *StoreError {
	return &StoreError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error was caused by bad caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsStorageError checks if an error came from the storage backend
func IsStorageError(err error) bool {
	return errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrStorageUnavailable)
}
