package transfer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/blocksync/pkg/digest"
	"github.com/marmos91/blocksync/pkg/index"
)

// blockReadBackoff bounds the retries GetNextBlock performs against a
// transient Io failure (spec §7: "Io is fatal to the current operation but
// the caller may retry") before giving up and surfacing the error. A block
// read races nothing but the local filesystem, so the backoff is short: a
// handful of attempts over well under a second.
func blockReadBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 200 * time.Millisecond
	return b
}

// sourceState tags where IndexSource.NextFromIndex is in the file/block
// walk.
type sourceState int

const (
	stateAdvanceFile sourceState = iota
	stateEmitBlocks
	stateDone
)

// blockLocation records where a digest's bytes can be read back from, so
// GetNextBlock never needs a second round trip through the Index.
type blockLocation struct {
	path   string
	offset uint64
	size   uint64
}

// IndexSource implements Source by walking a local Index's committed
// catalogue: it is the "feed an entire local Index as the new index"
// realization spec §9 leaves as an open question, resolved per SPEC_FULL
// §12 by reading the persisted blocks.size column rather than re-reading
// file bytes to learn each block's length.
type IndexSource struct {
	idx *index.Index

	files     []index.FileEntry
	fileIdx   int
	blocks    []index.BlockEntry
	blockIdx  int
	state     sourceState
	curFileID uint64
	curPath   string

	locations map[digest.Digest]blockLocation
	requested []digest.Digest
}

// NewIndexSource creates a Source over idx's full current catalogue. The
// file list is read at construction time, so files added to idx later are
// not emitted; each file's blocks and modified timestamp are read when
// NextFromIndex reaches that file, so changes to them made before then are
// reflected.
func NewIndexSource(idx *index.Index) (*IndexSource, error) {
	files, err := idx.ListFiles()
	if err != nil {
		return nil, err
	}
	return &IndexSource{
		idx:       idx,
		files:     files,
		locations: make(map[digest.Digest]blockLocation),
	}, nil
}

// NextFromIndex implements Source.
func (s *IndexSource) NextFromIndex() (IndexEvent, bool, error) {
	for {
		switch s.state {
		case stateDone:
			return IndexEvent{}, false, nil

		case stateAdvanceFile:
			if s.fileIdx >= len(s.files) {
				s.state = stateDone
				return EndEvent(), true, nil
			}
			f := s.files[s.fileIdx]
			s.fileIdx++

			blocks, err := s.idx.ListBlocks(f.FileID)
			if err != nil {
				return IndexEvent{}, false, err
			}
			s.blocks = blocks
			s.blockIdx = 0
			s.curFileID = f.FileID
			s.curPath = f.Path
			s.state = stateEmitBlocks

			modified, err := s.fileModified(f.FileID)
			if err != nil {
				return IndexEvent{}, false, err
			}
			return NewFileEvent(f.Path, modified), true, nil

		case stateEmitBlocks:
			if s.blockIdx >= len(s.blocks) {
				s.state = stateAdvanceFile
				continue
			}
			b := s.blocks[s.blockIdx]
			s.blockIdx++

			if _, known := s.locations[b.Hash]; !known {
				s.locations[b.Hash] = blockLocation{path: s.curPath, offset: b.Offset, size: b.Size}
			}
			return NewBlockEvent(b.Hash, b.Size), true, nil
		}
	}
}

// fileModified re-reads the file's recorded modified timestamp; ListFiles
// does not carry it, so this performs one lookup per file via the
// transaction-free read path. A real deployment would carry modified on
// FileEntry directly; kept as a separate lookup here to avoid widening
// the transaction-scoped FileEntry/BlockEntry types for a single caller.
func (s *IndexSource) fileModified(fileID uint64) (time.Time, error) {
	return s.idx.FileModified(fileID)
}

// RequestBlock implements Source.
func (s *IndexSource) RequestBlock(hash digest.Digest) error {
	s.requested = append(s.requested, hash)
	return nil
}

// GetNextBlock implements Source.
func (s *IndexSource) GetNextBlock() (digest.Digest, []byte, bool, error) {
	if len(s.requested) == 0 {
		return digest.Digest{}, nil, false, nil
	}
	hash := s.requested[0]
	s.requested = s.requested[1:]

	loc, ok := s.locations[hash]
	if !ok {
		return digest.Digest{}, nil, false, fmt.Errorf("transfer: requested digest %s was never declared by this source", hash)
	}

	buf := make([]byte, loc.size)
	readErr := backoff.Retry(func() error {
		f, err := os.Open(loc.path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.ReadFull(io.NewSectionReader(f, int64(loc.offset), int64(loc.size)), buf)
		return err
	}, blockReadBackoff())
	if readErr != nil {
		return digest.Digest{}, nil, false, fmt.Errorf("transfer: reading block %s from %s: %w", hash, loc.path, readErr)
	}

	return hash, buf, true, nil
}
