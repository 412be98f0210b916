package index_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/blocksync/pkg/digest"
	"github.com/marmos91/blocksync/pkg/index"
)

var errTest = errors.New("deliberate test failure")

func openTestIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestOpenInMemoryIsUsable(t *testing.T) {
	idx := openTestIndex(t)

	tx, err := idx.Transaction()
	require.NoError(t, err)

	files, err := tx.ListFiles()
	require.NoError(t, err)
	require.Empty(t, files)
	require.NoError(t, tx.Commit())
}

func TestOnlyOneTransactionAtATime(t *testing.T) {
	idx := openTestIndex(t)

	tx, err := idx.Transaction()
	require.NoError(t, err)

	_, err = idx.Transaction()
	require.ErrorIs(t, err, index.ErrTransactionInProgress)

	require.NoError(t, tx.Commit())

	tx2, err := idx.Transaction()
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
}

func TestTransactionMethodsFailAfterClose(t *testing.T) {
	idx := openTestIndex(t)

	tx, err := idx.Transaction()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, _, err = tx.AddFile("a", time.Now())
	require.ErrorIs(t, err, index.ErrNoTransaction)
}

func TestRollbackDiscardsMutations(t *testing.T) {
	idx := openTestIndex(t)

	tx, err := idx.Transaction()
	require.NoError(t, err)
	_, _, err = tx.AddFile("doomed", time.Now())
	require.NoError(t, err)
	tx.Rollback()

	tx2, err := idx.Transaction()
	require.NoError(t, err)
	files, err := tx2.ListFiles()
	require.NoError(t, err)
	require.Empty(t, files)
	require.NoError(t, tx2.Commit())
}

func TestWithTransactionCommitsOnNilError(t *testing.T) {
	idx := openTestIndex(t)

	err := idx.WithTransaction(func(tx *index.Transaction) error {
		_, _, err := tx.AddFile("kept", time.Now())
		return err
	})
	require.NoError(t, err)

	tx, err := idx.Transaction()
	require.NoError(t, err)
	files, err := tx.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, tx.Commit())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	idx := openTestIndex(t)

	err := idx.WithTransaction(func(tx *index.Transaction) error {
		_, _, addErr := tx.AddFile("discarded", time.Now())
		require.NoError(t, addErr)
		return errTest
	})
	require.ErrorIs(t, err, errTest)

	tx, err := idx.Transaction()
	require.NoError(t, err)
	files, err := tx.ListFiles()
	require.NoError(t, err)
	require.Empty(t, files)
	require.NoError(t, tx.Commit())
}

func TestGetBlockNotFound(t *testing.T) {
	idx := openTestIndex(t)

	_, _, found, err := idx.GetBlock(digest.Of([]byte("nothing here")))
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetBlockReturnsLowestFileIDThenOffset(t *testing.T) {
	idx := openTestIndex(t)
	h := digest.Of([]byte("shared block"))

	tx, err := idx.Transaction()
	require.NoError(t, err)

	id1, _, err := tx.AddFile("b.txt", time.Now())
	require.NoError(t, err)
	id2, _, err := tx.AddFile("a.txt", time.Now())
	require.NoError(t, err)

	require.NoError(t, tx.AddBlock(h, id1, 100, 10))
	require.NoError(t, tx.AddBlock(h, id2, 0, 10))
	require.NoError(t, tx.Commit())

	path, offset, found, err := idx.GetBlock(h)
	require.NoError(t, err)
	require.True(t, found)

	lowestID := id1
	if id2 < id1 {
		lowestID = id2
	}
	if lowestID == id1 {
		require.Equal(t, "b.txt", path)
		require.EqualValues(t, 100, offset)
	} else {
		require.Equal(t, "a.txt", path)
		require.EqualValues(t, 0, offset)
	}
}
