package indexer

import (
	"errors"
	"fmt"

	"github.com/marmos91/blocksync/pkg/index"
)

// indexerError wraps an underlying I/O failure with the path being
// indexed, satisfying errors.Is(err, index.ErrIo) so callers can use one
// error taxonomy across pkg/index and pkg/indexer.
type indexerError struct {
	op   string
	path string
	err  error
}

func (e *indexerError) Error() string {
	return fmt.Sprintf("indexer %s: %s (path=%s)", e.op, e.err, e.path)
}

func (e *indexerError) Unwrap() error {
	return errors.Join(index.ErrIo, e.err)
}

func newIndexerError(op, path string, err error) error {
	return &indexerError{op: op, path: path, err: err}
}
