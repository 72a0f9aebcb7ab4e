package tagged

import "errors"

var (
	// ErrIndexOutOfRange indicates an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidLength indicates a non-positive array length.
	ErrInvalidLength = errors.New("array length must be positive")

	// ErrInvalidTag indicates an initial tag other than empty or full.
	ErrInvalidTag = errors.New("initial tag must be empty or full")

	// ErrNoHeap indicates a byte payload written to a numeric-only array.
	ErrNoHeap = errors.New("array has no heap for variable-length values")

	// ErrHeapExhausted indicates the array heap cannot hold the payload.
	ErrHeapExhausted = errors.New("array heap exhausted")

	// ErrNotNumeric indicates an atomic arithmetic operation on a non-numeric cell.
	ErrNotNumeric = errors.New("cell does not hold a numeric value")

	// ErrNotHeld indicates a release of a cell that is not held in that mode.
	ErrNotHeld = errors.New("cell is not held")

	// ErrPersistentHeap indicates a heap requested for a file-backed array.
	ErrPersistentHeap = errors.New("persistent arrays cannot have a heap")

	// ErrPersistenceUnsupported indicates file-backed arrays are unavailable on this platform.
	ErrPersistenceUnsupported = errors.New("persistent arrays are not supported on this platform")

	// ErrBadBackingFile indicates an existing backing file with a foreign or mismatched layout.
	ErrBadBackingFile = errors.New("backing file does not match array layout")
)
