package transfer

import (
	"time"

	"github.com/marmos91/blocksync/pkg/digest"
	"github.com/marmos91/blocksync/pkg/index"
)

// BlockWriter is the collaborator that places fed block bytes at their
// destination; IndexSink does not call it for blocks found locally (dedup
// hits), whose location is only recorded. Actual byte storage is a concrete
// filesystem concern and explicitly out of this package's scope (spec §1
// Out of scope); IndexSink calls Writer only as a hook, and a nil Writer
// is valid for index-only tests that never touch real files.
type BlockWriter interface {
	WriteBlock(path string, offset uint64, data []byte) error
}

// pendingBlock is one declared-but-not-yet-resolved block within the file
// currently being described. Always referenced through a pointer (held by
// both pendingFile.blocks and IndexSink.waiting) so that FeedBlock can
// resolve it in place regardless of how either slice has grown since.
type pendingBlock struct {
	file   *pendingFile
	hash   digest.Digest
	offset uint64
	size   uint64

	// localPath/localOffset are set when the block was already present
	// locally (dedup hit); resolved is set once either that lookup or a
	// FeedBlock has satisfied this position.
	localPath   string
	localOffset uint64
	resolved    bool
}

type pendingFile struct {
	path     string
	modified time.Time
	blocks   []*pendingBlock
	offset   uint64
}

// IndexSink implements Sink against a local Index: it looks up each
// declared block in its own catalogue for dedup, queues misses for
// request, and once an entire session's worth of blocks are resolved,
// Apply records the new catalogue entries in one Transaction, which the
// caller commits.
//
// Grounded on the Sink role described in spec §4.5 and §5 ("the Sink may
// hold a live read-only reference for lookups outside of any Transaction,
// and may open a Transaction for durable writes after the session
// completes").
type IndexSink struct {
	idx    *index.Index
	writer BlockWriter

	files   []*pendingFile
	current *pendingFile

	// requestQueue holds digests not yet requested of the Source, in
	// declaration order. requested guards against requesting the same
	// digest twice in one session (spec §4.5 contract invariant).
	requestQueue []digest.Digest
	requested    map[digest.Digest]bool

	// waiting maps a requested-but-not-yet-fed digest to every pending
	// block position awaiting it, since the same digest may be declared
	// at multiple positions across the session.
	waiting map[digest.Digest][]*pendingBlock

	// fed caches bytes already delivered this session, so a digest
	// declared again at a later position (spec §4.5: "a block digest may
	// be requested at most once per session even if it appears at
	// multiple positions") is satisfied without a second request.
	fed map[digest.Digest][]byte
}

// NewIndexSink creates a Sink performing dedup lookups against idx. writer
// may be nil.
func NewIndexSink(idx *index.Index, writer BlockWriter) *IndexSink {
	return &IndexSink{
		idx:       idx,
		writer:    writer,
		requested: make(map[digest.Digest]bool),
		waiting:   make(map[digest.Digest][]*pendingBlock),
		fed:       make(map[digest.Digest][]byte),
	}
}

// NewFile implements Sink.
func (s *IndexSink) NewFile(path string, modified time.Time) error {
	f := &pendingFile{path: path, modified: modified}
	s.files = append(s.files, f)
	s.current = f
	return nil
}

// NewBlock implements Sink.
func (s *IndexSink) NewBlock(hash digest.Digest, size uint64) error {
	if s.current == nil {
		return ErrProtocolViolation
	}

	f := s.current
	b := &pendingBlock{file: f, hash: hash, offset: f.offset, size: size}
	f.offset += size

	if bytes, already := s.fed[hash]; already {
		b.resolved = true
		f.blocks = append(f.blocks, b)
		if s.writer != nil {
			return s.writer.WriteBlock(f.path, b.offset, bytes)
		}
		return nil
	}

	if path, offset, found, err := s.idx.GetBlock(hash); err != nil {
		return err
	} else if found {
		b.localPath = path
		b.localOffset = offset
		b.resolved = true
		f.blocks = append(f.blocks, b)
		return nil
	}

	f.blocks = append(f.blocks, b)
	s.waiting[hash] = append(s.waiting[hash], b)

	if !s.requested[hash] {
		s.requested[hash] = true
		s.requestQueue = append(s.requestQueue, hash)
	}
	return nil
}

// FeedBlock implements Sink.
func (s *IndexSink) FeedBlock(hash digest.Digest, bytes []byte) error {
	if digest.Of(bytes) != hash {
		return ErrBadDigest
	}

	refs, ok := s.waiting[hash]
	if !ok {
		return ErrProtocolViolation
	}
	delete(s.waiting, hash)
	s.fed[hash] = bytes

	for _, ref := range refs {
		ref.resolved = true
		if s.writer != nil {
			if err := s.writer.WriteBlock(ref.file.path, ref.offset, bytes); err != nil {
				return err
			}
		}
	}
	return nil
}

// NextRequestedBlock implements Sink.
func (s *IndexSink) NextRequestedBlock() (digest.Digest, bool) {
	if len(s.requestQueue) == 0 {
		return digest.Digest{}, false
	}
	hash := s.requestQueue[0]
	s.requestQueue = s.requestQueue[1:]
	return hash, true
}

// IsMissingBlocks implements Sink.
func (s *IndexSink) IsMissingBlocks() bool {
	return len(s.waiting) > 0
}

// Apply adds every declared file's catalogue entries to tx, skipping files
// tx reports as up to date, and fails with ErrProtocolViolation at the first
// block still unresolved. It does not commit tx. Called after Drive returns successfully (spec §5: the Sink's Index is
// updated only by a separate post-session commit).
func (s *IndexSink) Apply(tx *index.Transaction) error {
	for _, f := range s.files {
		fileID, upToDate, err := tx.AddFile(f.path, f.modified)
		if err != nil {
			return err
		}
		if upToDate {
			continue
		}
		for _, b := range f.blocks {
			if !b.resolved {
				return ErrProtocolViolation
			}
			if err := tx.AddBlock(b.hash, fileID, b.offset, b.size); err != nil {
				return err
			}
		}
	}
	return nil
}
