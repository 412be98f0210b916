package index

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/marmos91/blocksync/internal/logger"
	"github.com/marmos91/blocksync/pkg/digest"
)

// Transaction is a scoped, exclusive mutation context over an Index (spec
// §4.3 transaction operations). It must end in exactly one of Commit or
// Rollback; calling Commit again, or any method other than Rollback after
// either, fails with ErrNoTransaction. Rollback after either is a no-op.
type Transaction struct {
	idx    *Index
	tx     *gorm.DB
	closed bool
}

func (t *Transaction) guard(op string) error {
	if t.closed {
		return newError(op, "", 0, ErrNoTransaction)
	}
	return nil
}

// Commit makes all mutations durable and releases the Index for the next
// Transaction.
func (t *Transaction) Commit() error {
	if err := t.guard("commit"); err != nil {
		return err
	}
	t.closed = true
	t.idx.mu.Lock()
	t.idx.txOpen = false
	t.idx.mu.Unlock()

	if err := t.tx.Commit().Error; err != nil {
		logger.Error("transaction commit failed", logger.Operation("commit"), logger.Err(err))
		return newError("commit", "", 0, errors.Join(ErrIo, err))
	}
	logger.Debug("transaction committed", logger.Operation("commit"))
	return nil
}

// Rollback discards all mutations and releases the Index. It is safe to
// call after a Commit or a prior Rollback (no-op).
func (t *Transaction) Rollback() {
	if t.closed {
		return
	}
	t.closed = true
	t.idx.mu.Lock()
	t.idx.txOpen = false
	t.idx.mu.Unlock()
	t.tx.Rollback()
	logger.Debug("transaction rolled back", logger.Operation("rollback"))
}

// AddFile records name with last-modified timestamp modified, applying the
// up-to-date check (spec §4.3 add_file):
//
//   - no existing row: insert, return (new_id, false).
//   - existing row, same modified: return (existing_id, true) — up to date.
//   - existing row, different modified: delete its blocks, update modified,
//     return (existing_id, false) — needs re-indexing.
func (t *Transaction) AddFile(name string, modified time.Time) (fileID uint64, upToDate bool, err error) {
	if err := t.guard("add_file"); err != nil {
		return 0, false, err
	}
	if !utf8.ValidString(name) {
		return 0, false, newError("add_file", name, 0, ErrPathEncoding)
	}

	var existing File
	lookupErr := t.tx.Table("files").Where("name = ?", name).Take(&existing).Error
	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		rec := File{Name: name, Modified: modified}
		if err := t.tx.Table("files").Create(&rec).Error; err != nil {
			return 0, false, newError("add_file", name, 0, errors.Join(ErrIo, err))
		}
		return rec.FileID, false, nil

	case lookupErr != nil:
		return 0, false, newError("add_file", name, 0, errors.Join(ErrIo, lookupErr))

	case existing.Modified.Equal(modified):
		return existing.FileID, true, nil

	default:
		if err := t.tx.Table("blocks").Where("file_id = ?", existing.FileID).Delete(&Block{}).Error; err != nil {
			return 0, false, newError("add_file", name, existing.FileID, errors.Join(ErrIo, err))
		}
		if err := t.tx.Table("files").Where("file_id = ?", existing.FileID).Update("modified", modified).Error; err != nil {
			return 0, false, newError("add_file", name, existing.FileID, errors.Join(ErrIo, err))
		}
		return existing.FileID, false, nil
	}
}

// RemoveFile deletes fileID's blocks, then its file row. Idempotent: a
// missing fileID is not an error.
func (t *Transaction) RemoveFile(fileID uint64) error {
	if err := t.guard("remove_file"); err != nil {
		return err
	}
	if err := t.tx.Table("blocks").Where("file_id = ?", fileID).Delete(&Block{}).Error; err != nil {
		return newError("remove_file", "", fileID, errors.Join(ErrIo, err))
	}
	if err := t.tx.Table("files").Where("file_id = ?", fileID).Delete(&File{}).Error; err != nil {
		return newError("remove_file", "", fileID, errors.Join(ErrIo, err))
	}
	return nil
}

// FileEntry is one row yielded by ListFiles.
type FileEntry struct {
	FileID uint64
	Path   string
}

// ListFiles returns every file currently in the index.
func (t *Transaction) ListFiles() ([]FileEntry, error) {
	if err := t.guard("list_files"); err != nil {
		return nil, err
	}
	var rows []File
	if err := t.tx.Table("files").Order("file_id").Find(&rows).Error; err != nil {
		return nil, newError("list_files", "", 0, errors.Join(ErrIo, err))
	}
	entries := make([]FileEntry, len(rows))
	for i, r := range rows {
		entries[i] = FileEntry{FileID: r.FileID, Path: r.Name}
	}
	return entries, nil
}

// BlockEntry is one row yielded by ListBlocks.
type BlockEntry struct {
	Hash   digest.Digest
	Offset uint64
	Size   uint64
}

// ListBlocks returns fileID's blocks in ascending offset order — the
// ordering NewIndexSource relies on to emit NewBlock events correctly
// (spec §5 ordering guarantees; SPEC_FULL §12).
func (t *Transaction) ListBlocks(fileID uint64) ([]BlockEntry, error) {
	if err := t.guard("list_blocks"); err != nil {
		return nil, err
	}
	var rows []Block
	if err := t.tx.Table("blocks").Where("file_id = ?", fileID).Order("offset").Find(&rows).Error; err != nil {
		return nil, newError("list_blocks", "", fileID, errors.Join(ErrIo, err))
	}
	entries := make([]BlockEntry, len(rows))
	for i, r := range rows {
		d, err := digest.FromHex(r.Hash)
		if err != nil {
			return nil, newError("list_blocks", "", fileID, errors.Join(ErrIo, err))
		}
		entries[i] = BlockEntry{Hash: d, Offset: r.Offset, Size: r.Size}
	}
	return entries, nil
}

// AddBlock inserts a block row at (fileID, offset). Fails with
// ErrDuplicateBlock if that position is already occupied.
func (t *Transaction) AddBlock(hash digest.Digest, fileID uint64, offset, size uint64) error {
	if err := t.guard("add_block"); err != nil {
		return err
	}

	rec := Block{Hash: hash.String(), FileID: fileID, Offset: offset, Size: size}
	if err := t.tx.Table("blocks").Create(&rec).Error; err != nil {
		if isDuplicateKeyError(err) {
			return newError("add_block", "", fileID, ErrDuplicateBlock)
		}
		return newError("add_block", "", fileID, errors.Join(ErrIo, err))
	}
	return nil
}

// isDuplicateKeyError recognizes SQLite and PostgreSQL unique/primary-key
// violations, grounded on the teacher's isUniqueConstraintError
// (pkg/controlplane/store/gorm.go).
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "PRIMARY KEY must be unique")
}
