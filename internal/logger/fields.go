package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Session & Operation
	// ========================================================================
	KeySessionID = "session_id" // transfer session identifier
	KeyOperation = "operation"  // operation name: index_file, transaction, get_block, drive

	// ========================================================================
	// Index Store
	// ========================================================================
	KeyIndexPath = "index_path" // backing path of the Index Store, if file-backed
	KeyBackend   = "backend"    // index.Backend: sqlite, postgres
	KeyFileID    = "file_id"    // file identifier within the Index Store

	// ========================================================================
	// File & Block
	// ========================================================================
	KeyPath   = "path"   // file path being indexed or transferred
	KeyOffset = "offset" // block offset within its file
	KeySize   = "size"   // block or file size in bytes
	KeyDigest = "digest" // block content digest, hex-encoded
	KeyChunks = "chunks" // number of blocks cut from a file
	KeyBlocks = "blocks" // number of blocks recorded or transferred

	// ========================================================================
	// Transfer
	// ========================================================================
	KeyMissing   = "missing"   // count of blocks still awaited by a Sink
	KeyRequested = "requested" // count of blocks requested from a Source
	KeyFed       = "fed"       // count of blocks fed into a Sink

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// SessionID returns a slog.Attr for the transfer session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Operation returns a slog.Attr for the operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// IndexPath returns a slog.Attr for the Index Store's backing path
func IndexPath(p string) slog.Attr {
	return slog.String(KeyIndexPath, p)
}

// Backend returns a slog.Attr for the Index Store backend
func Backend(b string) slog.Attr {
	return slog.String(KeyBackend, b)
}

// FileID returns a slog.Attr for a file identifier
func FileID(id uint64) slog.Attr {
	return slog.Uint64(KeyFileID, id)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Offset returns a slog.Attr for a block offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Size returns a slog.Attr for a block or file size
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// Digest returns a slog.Attr for a block digest, hex-encoded
func Digest(hex string) slog.Attr {
	return slog.String(KeyDigest, hex)
}

// Chunks returns a slog.Attr for the number of blocks cut from a file
func Chunks(n int) slog.Attr {
	return slog.Int(KeyChunks, n)
}

// Blocks returns a slog.Attr for a count of blocks
func Blocks(n int) slog.Attr {
	return slog.Int(KeyBlocks, n)
}

// Missing returns a slog.Attr for a count of blocks still awaited
func Missing(n int) slog.Attr {
	return slog.Int(KeyMissing, n)
}

// Requested returns a slog.Attr for a count of blocks requested
func Requested(n int) slog.Attr {
	return slog.Int(KeyRequested, n)
}

// Fed returns a slog.Attr for a count of blocks fed into a Sink
func Fed(n int) slog.Attr {
	return slog.Int(KeyFed, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
