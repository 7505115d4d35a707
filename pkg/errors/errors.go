// Package errors defines unified error types for memory engine operations.
// Storage and embedding failures are mapped to these standard error types so
// callers can distinguish recoverable degradations from data-loss risks.
package errors

import (
	"errors"
	"fmt"
)

// MemoryError represents a standardized error from the memory engine.
// It carries the failing operation, a stable kind, and whether the engine
// recovered by degrading (empty vector, empty result set) instead of
// surfacing the failure.
type MemoryError struct {
	Op          string `json:"op"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *MemoryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Op, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *MemoryError) Unwrap() error {
	return e.cause
}

// Error kinds as constants for consistency.
const (
	KindEmbeddingFailure = "embedding_failure"
	KindStorageRead      = "storage_read"
	KindStorageWrite     = "storage_write"
	KindInvalidInput     = "invalid_input"
)

// NewEmbeddingError wraps an embedding generator failure. Recoverable: the
// engine substitutes an empty vector and recall degrades.
func NewEmbeddingError(op string, cause error) *MemoryError {
	return &MemoryError{
		Op:          op,
		Kind:        KindEmbeddingFailure,
		Message:     "embedding generator failed",
		Recoverable: true,
		cause:       cause,
	}
}

// NewStorageReadError wraps a read failure from the document store.
// Recoverable: the engine treats the result as "nothing known yet".
func NewStorageReadError(op string, cause error) *MemoryError {
	return &MemoryError{
		Op:          op,
		Kind:        KindStorageRead,
		Message:     "document store read failed",
		Recoverable: true,
		cause:       cause,
	}
}

// NewStorageWriteError wraps a write failure from the document store.
// Not recoverable: losing a turn or a learned fact is a correctness
// regression, so the caller must see it.
func NewStorageWriteError(op string, cause error) *MemoryError {
	return &MemoryError{
		Op:          op,
		Kind:        KindStorageWrite,
		Message:     "document store write failed",
		Recoverable: false,
		cause:       cause,
	}
}

// NewInvalidInputError reports malformed caller input.
func NewInvalidInputError(op, message string) *MemoryError {
	return &MemoryError{
		Op:          op,
		Kind:        KindInvalidInput,
		Message:     message,
		Recoverable: true,
	}
}

// IsRecoverable reports whether err is a MemoryError the engine can absorb
// by degrading recall quality instead of failing the turn.
func IsRecoverable(err error) bool {
	var me *MemoryError
	if errors.As(err, &me) {
		return me.Recoverable
	}
	return false
}

// IsStorageWrite reports whether err is a storage write failure, the one
// class that must never be swallowed.
func IsStorageWrite(err error) bool {
	var me *MemoryError
	if errors.As(err, &me) {
		return me.Kind == KindStorageWrite
	}
	return false
}
