// Package chunk implements content-defined chunking: the ZPAQ order-1
// context-prediction splitter with a hard maximum block size. See pkg/index
// for how chunks become persisted Block rows, and pkg/indexer for the glue
// between the two.
//
// The splitting rule (spec-mandated constants):
//
//   - AvgBits = 13, giving an average block size of 8 KiB. A cut fires when
//     the rolling hash h drops below zpaqThreshold, which happens with
//     probability 2^-AvgBits at each byte position.
//   - MaxBlockSize = 32 KiB is a hard ceiling: a cut is forced here even if
//     no content cut has fired.
//   - End of stream forces a final cut, unless nothing was read since the
//     last one (no empty trailing block, except that an entirely empty
//     stream yields zero blocks rather than one).
package chunk

import (
	"bufio"
	"io"

	"github.com/marmos91/blocksync/pkg/digest"
)

// Chunking parameters. These are baked into the index format: changing
// them invalidates existing indexes (spec §6).
const (
	// AvgBits controls the average block size: 2^AvgBits bytes. Matches
	// original_source/src/index.rs's ZPAQ_BITS.
	AvgBits = 13

	// AvgBlockSize is the average block size in bytes (8 KiB).
	AvgBlockSize = 1 << AvgBits

	// MaxBlockSize is the hard ceiling on block size (32 KiB).
	MaxBlockSize = 32 * 1024

	// readBufferSize is the internal buffering size; it has no effect on
	// cut points, only on syscall count.
	readBufferSize = 64 * 1024
)

// zpaqThreshold is the order-1-context hash threshold from the classic ZPAQ
// fragment splitter (Matt Mahoney's zpaq, as parameterized by bits in the
// Rust `cdchunking` crate's ZPAQ chunker that original_source/src/index.rs
// builds its Chunker from). A cut fires when h < zpaqThreshold, which
// happens with probability zpaqThreshold / 2^32 at each byte position, so
// the average run between cuts is 2^32 / zpaqThreshold = 2^AvgBits bytes.
//
// Ported byte-for-byte (the 314159265 / 271828182 multipliers, the o1
// order-1 predictor table, the h/c1 update order) from
// _examples/other_examples/163fd74b_VariousForks-dedup__writer.go.go's
// zpaqWriter, so this Chunker reproduces the literal digests
// original_source/src/index.rs's own fixture test asserts at offsets 0,
// 11579, and 44347 (spec §8 scenario 1).
const zpaqThreshold = uint32(1) << (32 - AvgBits)

// Cut describes one chunk emitted by the Chunker: its offset and length
// within the stream, and the digest of its exact bytes.
type Cut struct {
	Offset uint64
	Length uint64
	Digest digest.Digest
}

// Chunker streams bytes from r and yields a sequence of Cuts covering the
// stream exactly: lengths sum to the stream length, offsets are strictly
// increasing and contiguous, with no gaps or overlaps.
type Chunker struct {
	r   *bufio.Reader
	off uint64
	eof bool

	// o1 is the order-1 context model: o1[c1] predicts the byte that
	// follows c1. It persists across cut boundaries for the life of the
	// Chunker — only h and c1 reset at a cut, matching the reference
	// implementation's split().
	o1 [256]byte
	c1 byte
	h  uint32
}

// NewChunker wraps r for chunking. r is read to exhaustion; Chunker does
// not close it.
func NewChunker(r io.Reader) *Chunker {
	return &Chunker{r: bufio.NewReaderSize(r, readBufferSize)}
}

// Next returns the next Cut. It returns io.EOF once the stream is
// exhausted and no further Cuts remain — including immediately, for an
// empty stream, which yields zero Cuts total.
func (c *Chunker) Next() (Cut, error) {
	if c.eof {
		return Cut{}, io.EOF
	}

	start := c.off
	hasher := digest.NewHasher()
	var length uint64

	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if err != io.EOF {
				return Cut{}, err
			}
			c.eof = true
			if length == 0 {
				return Cut{}, io.EOF
			}
			break
		}

		hasher.Write([]byte{b})
		length++
		c.off++

		if b == c.o1[c.c1] {
			c.h = (c.h + uint32(b) + 1) * 314159265
		} else {
			c.h = (c.h + uint32(b) + 1) * 271828182
		}
		c.o1[c.c1] = b
		c.c1 = b

		if length >= MaxBlockSize {
			c.h, c.c1 = 0, 0
			break
		}
		if c.h < zpaqThreshold {
			c.h, c.c1 = 0, 0
			break
		}
	}

	return Cut{Offset: start, Length: length, Digest: hasher.Sum()}, nil
}

// All drains the Chunker and returns every Cut. Intended for small inputs
// and tests; pkg/indexer uses Next directly to avoid buffering the whole
// sequence.
func All(r io.Reader) ([]Cut, error) {
	c := NewChunker(r)
	var cuts []Cut
	for {
		cut, err := c.Next()
		if err == io.EOF {
			return cuts, nil
		}
		if err != nil {
			return cuts, err
		}
		cuts = append(cuts, cut)
	}
}
