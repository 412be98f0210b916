package transfer

import "errors"

// Error taxonomy for the transfer session (spec §7). BadDigest and
// ProtocolViolation are fatal to the session; Canceled reflects
// cooperative cancellation between driver iterations (spec §5).
var (
	// ErrBadDigest means a fed block's bytes do not hash to the
	// requested digest.
	ErrBadDigest = errors.New("transfer: digest mismatch on fed block")

	// ErrProtocolViolation covers a NewBlock before any NewFile, a
	// FeedBlock for a digest never requested, or an index event
	// delivered after End.
	ErrProtocolViolation = errors.New("transfer: protocol violation")

	// ErrCanceled is returned by Drive when the caller's context is
	// canceled between loop iterations.
	ErrCanceled = errors.New("transfer: canceled")
)
