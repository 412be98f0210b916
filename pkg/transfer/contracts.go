// Package transfer implements the Sink/Source contracts (spec C5) and the
// interleaving Transfer driver (spec C6) that pairs them until
// convergence.
//
// Grounded on original_source/src/lib.rs and src/sync.rs for the capability
// split and the do_stream priority loop, and on the teacher's
// pkg/payload/transfer package (since removed from this tree — see
// DESIGN.md) for the ambient style of a driver package: small interfaces,
// sentinel errors, a single driving loop rather than a worker pool, since
// spec §5 mandates single-threaded cooperative execution.
package transfer

import (
	"time"

	"github.com/marmos91/blocksync/pkg/digest"
)

// EventKind tags the variant of an IndexEvent.
type EventKind int

const (
	// EventNewFile begins describing a new file in the incoming state.
	EventNewFile EventKind = iota

	// EventNewBlock declares a block belonging to the most recently
	// opened file.
	EventNewBlock

	// EventEnd terminates the index instruction stream. No further
	// events follow.
	EventEnd
)

// IndexEvent is the finite tagged stream a Source produces (spec §4.5,
// §9): a sequence of NewFile events each followed by zero or more NewBlock
// events, terminated by exactly one End.
type IndexEvent struct {
	Kind EventKind

	// Valid when Kind == EventNewFile.
	Path     string
	Modified time.Time

	// Valid when Kind == EventNewBlock. The block's position within the
	// current file is implicit: it starts at the running offset and
	// advances by Size.
	Hash digest.Digest
	Size uint64
}

// NewFileEvent constructs an EventNewFile.
func NewFileEvent(path string, modified time.Time) IndexEvent {
	return IndexEvent{Kind: EventNewFile, Path: path, Modified: modified}
}

// NewBlockEvent constructs an EventNewBlock.
func NewBlockEvent(hash digest.Digest, size uint64) IndexEvent {
	return IndexEvent{Kind: EventNewBlock, Hash: hash, Size: size}
}

// EndEvent constructs the terminal EventEnd.
func EndEvent() IndexEvent {
	return IndexEvent{Kind: EventEnd}
}

// Sink is the capability set of the peer receiving the description of
// desired state (spec §4.5). All methods except FeedBlock must be
// non-blocking: they consult local state only.
type Sink interface {
	// NewFile begins a new file in the incoming description.
	NewFile(path string, modified time.Time) error

	// NewBlock declares that the currently open file contains a block
	// with this digest and size at the current position. The Sink
	// decides locally whether the block is already available and, if
	// not, enqueues hash for request.
	NewBlock(hash digest.Digest, size uint64) error

	// FeedBlock delivers the bytes of a previously requested block. It
	// fails with ErrBadDigest if digest(bytes) != hash. May block on
	// network write in a remote Sink.
	FeedBlock(hash digest.Digest, bytes []byte) error

	// NextRequestedBlock pops the next digest the Sink wants, or
	// ok == false when none is pending.
	NextRequestedBlock() (hash digest.Digest, ok bool)

	// IsMissingBlocks reports whether any declared block is neither
	// locally available nor yet fed.
	IsMissingBlocks() bool
}

// Source is the capability set of the peer producing the description of
// desired state and serving block bodies (spec §4.5).
type Source interface {
	// NextFromIndex returns the next instruction, or ok == false once the
	// stream (already terminated by an End event) is exhausted.
	NextFromIndex() (event IndexEvent, ok bool, err error)

	// RequestBlock records a pull request for hash; may buffer or
	// forward to a remote. May block on network write in a remote
	// Source.
	RequestBlock(hash digest.Digest) error

	// GetNextBlock returns a previously requested block's bytes, or
	// ok == false if none is ready right now. May block on network read
	// in a remote Source.
	GetNextBlock() (hash digest.Digest, bytes []byte, ok bool, err error)
}
