package txn

import "errors"

var (
	// ErrDuplicateRef indicates a reference set that names a cell twice.
	ErrDuplicateRef = errors.New("transaction references a cell more than once")

	// ErrNilArray indicates a reference without an array.
	ErrNilArray = errors.New("transaction reference has no array")

	// ErrNotAcquired indicates access to a cell the transaction does not hold.
	ErrNotAcquired = errors.New("cell not acquired by transaction")

	// ErrReadOnly indicates a write to a cell held read-only.
	ErrReadOnly = errors.New("cell acquired read-only")

	// ErrHandleClosed indicates use of a transaction that already ended.
	ErrHandleClosed = errors.New("transaction already ended")

	// ErrUncommittedWrites indicates a transaction ended without commit after
	// writing. The writes are visible; there is no undo log.
	ErrUncommittedWrites = errors.New("transaction ended without commit after writing")
)
