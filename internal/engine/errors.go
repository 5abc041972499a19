package engine

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/stmtimport/internal/importer"
)

var (
	// ErrOversize rejects a statement larger than the configured ceiling
	// before any parsing happens.
	ErrOversize = errors.New("statement exceeds size limit")

	// ErrEmptyResult means nothing survived parsing and date filtering.
	ErrEmptyResult = importer.ErrEmptyResult

	// ErrUndecidedConflict means a conflict pair reached Commit without a
	// decision.
	ErrUndecidedConflict = errors.New("conflict pair has no decision")

	// ErrCancelled is returned when the context ends before the delete phase
	// of a commit. Nothing has been applied.
	ErrCancelled = errors.New("commit cancelled")

	// ErrStaleConflict means an entry selected for replacement no longer
	// exists in the ledger.
	ErrStaleConflict = errors.New("conflicting ledger entry no longer exists")

	// ErrBatchNotFound is returned by batch lookups for an unknown id.
	ErrBatchNotFound = errors.New("import batch not found")

	// ErrNoAccount means an operation was called without a target account.
	ErrNoAccount = errors.New("target account is required")
)

// PersistenceError wraps a store failure during Commit or DeleteBatch. The
// transaction it occurred in has been rolled back in full.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
