package index

import (
	"errors"
	"fmt"
)

// Error taxonomy for the Index Store and the File Indexer built on top of
// it (spec §7). These are sentinels: callers should match with errors.Is.
var (
	// ErrIo covers filesystem or transport failures underlying the Index.
	// Fatal to the current operation only; callers may retry.
	ErrIo = errors.New("index: i/o error")

	// ErrSchemaMismatch means the backing store exists but its version row
	// does not match what this package knows how to read.
	ErrSchemaMismatch = errors.New("index: schema mismatch")

	// ErrPathEncoding means a file path cannot be round-tripped through
	// the store's text encoding and was rejected rather than stored
	// lossily.
	ErrPathEncoding = errors.New("index: path encoding error")

	// ErrDuplicateBlock means a block row already exists at (file_id,
	// offset) — a programming error or index corruption, since add_file's
	// up-to-date check is the only sanctioned way to reset a file's
	// blocks.
	ErrDuplicateBlock = errors.New("index: duplicate block")

	// ErrNoTransaction is returned by Transaction methods called after
	// Commit or Rollback.
	ErrNoTransaction = errors.New("index: transaction already closed")

	// ErrTransactionInProgress is returned by Index.Transaction when a
	// transaction is already open on this Index.
	ErrTransactionInProgress = errors.New("index: transaction already in progress")
)

// Error wraps a sentinel Index error with the file/operation context that
// made it happen, in the shape of the teacher's PayloadError
// (pkg/payload/errors.go): it keeps errors.Is/errors.As working through the
// wrapper while giving logs something more useful than the bare sentinel.
type Error struct {
	// Op names the operation that failed: "open", "add_file", "add_block",
	// "get_block", "index_file", and so on.
	Op string

	// Path is the file path involved, if any.
	Path string

	// FileID is the file identity involved, if any (0 if not applicable).
	FileID uint64

	// Err is the wrapped sentinel error.
	Err error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("index %s: %s (path=%s)", e.Op, e.Err, e.Path)
	}
	return fmt.Sprintf("index %s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, fileID uint64, err error) *Error {
	return &Error{Op: op, Path: path, FileID: fileID, Err: err}
}
