package bench

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes benchmark failures.
type ErrorCode string

const (
	// ErrCodeChecksumMismatch indicates the tables do not account for every
	// committed write.
	ErrCodeChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"

	// ErrCodeBadTransaction indicates a dequeued payload that does not name
	// valid table cells.
	ErrCodeBadTransaction ErrorCode = "BAD_TRANSACTION"
)

// ConsistencyError reports a run whose final state contradicts the work the
// workers performed. It is fatal: the shared tables can no longer be trusted.
type ConsistencyError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Expected and Actual are the compared totals, when the check is numeric.
	Expected int64
	Actual   int64
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	if e.Code == ErrCodeChecksumMismatch {
		return fmt.Sprintf("%s: %s (sum=%d, expected=%d)", e.Code, e.Message, e.Actual, e.Expected)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConsistencyError returns true if err is or wraps a ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// NewChecksumError creates a checksum mismatch error.
func NewChecksumError(expected, actual int64) *ConsistencyError {
	return &ConsistencyError{
		Code:     ErrCodeChecksumMismatch,
		Message:  "table contents do not match committed updates",
		Expected: expected,
		Actual:   actual,
	}
}

// NewBadTransactionError creates an error for an undecodable or out of range
// transaction payload.
func NewBadTransactionError(format string, args ...any) *ConsistencyError {
	return &ConsistencyError{
		Code:    ErrCodeBadTransaction,
		Message: fmt.Sprintf(format, args...),
	}
}
