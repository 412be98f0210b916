package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one sync operation:
// an index mutation, an indexing pass over a file, or a transfer session
// driven by Drive.
type LogContext struct {
	SessionID string    // transfer session identifier, stable across one Drive() run
	Operation string    // operation name: index_file, transaction, get_block, drive, etc.
	IndexPath string    // backing path of the Index Store involved, if file-backed
	FilePath  string    // file path being indexed or transferred
	Backend   string    // index.Backend serving the operation: sqlite, postgres
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a transfer session identified
// by sessionID.
func NewLogContext(sessionID string) *LogContext {
	return &LogContext{
		SessionID: sessionID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		SessionID: lc.SessionID,
		Operation: lc.Operation,
		IndexPath: lc.IndexPath,
		FilePath:  lc.FilePath,
		Backend:   lc.Backend,
		StartTime: lc.StartTime,
	}
}

// WithOperation returns a copy with the operation name set
func (lc *LogContext) WithOperation(operation string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = operation
	}
	return clone
}

// WithIndex returns a copy with the index path and backend set
func (lc *LogContext) WithIndex(path, backend string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.IndexPath = path
		clone.Backend = backend
	}
	return clone
}

// WithFile returns a copy with the file path set
func (lc *LogContext) WithFile(path string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.FilePath = path
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
