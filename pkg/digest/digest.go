// Package digest implements the 20-byte content digest used to identify
// blocks throughout the index and transfer protocol.
package digest

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// Size is the width of a Digest in bytes (160 bits).
const Size = sha1.Size

// ErrBadDigest is returned when a Digest cannot be constructed from its
// input: wrong length, non-hex characters, or (on the wire) a mismatch
// between the requested hash and the bytes delivered for it.
var ErrBadDigest = errors.New("bad digest")

// Digest is an immutable 160-bit content identifier. The zero Digest is
// valid but is not the digest of an empty byte slice (Of(nil) is the SHA-1
// of empty input); it is NOT special-cased, and callers compare and hash it
// like any other value.
type Digest [Size]byte

// Of computes the Digest of b.
func Of(b []byte) Digest {
	return Digest(sha1.Sum(b))
}

// New constructs a Digest from a raw 20-byte slice.
func New(raw []byte) (Digest, error) {
	var d Digest
	if len(raw) != Size {
		return d, fmt.Errorf("%w: want %d raw bytes, got %d", ErrBadDigest, Size, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// Hasher accumulates bytes and produces a Digest on Sum. It lets callers
// feed a block incrementally (as the chunker discovers its boundary)
// instead of buffering the whole block first.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a fresh, empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha1.New()}
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the Digest of everything written so far. It does not reset
// the Hasher's state.
func (h *Hasher) Sum() Digest {
	var d Digest
	copy(d[:], h.h.Sum(nil))
	return d
}

// FromHex parses a lowercase or uppercase hex string into a Digest.
// Fails with ErrBadDigest for the wrong length or non-hex characters.
func FromHex(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrBadDigest, err)
	}
	return New(raw)
}

// String renders the Digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the raw 20 bytes of the Digest.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// Equal reports whether d and other identify the same content.
func (d Digest) Equal(other Digest) bool {
	return d == other
}

// Compare implements a total bytewise ordering over Digest, suitable for
// sorting or use as a map/B-tree key where determinism matters.
func (d Digest) Compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

// IsZero reports whether d is the zero-value Digest (20 zero bytes).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalBinary implements encoding.BinaryMarshaler for persistence.
func (d Digest) MarshalBinary() ([]byte, error) {
	return d.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for persistence.
func (d *Digest) UnmarshalBinary(data []byte) error {
	parsed, err := New(data)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
