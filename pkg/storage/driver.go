// Package storage defines how decoded run streams are recorded.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving recorded stream
// sessions. A session keeps both the raw lines it was decoded from and the
// events the decoder produced, so it can be inspected as decoded or replayed
// through a fresh decoder.
type Driver interface {
	// CreateSession stores a new, open session.
	CreateSession(ctx context.Context, session *Session) error

	// AppendLine records a raw stream line at the given index.
	AppendLine(ctx context.Context, line *Line) error

	// AppendRecord records a decoded event at the given index.
	AppendRecord(ctx context.Context, record *Record) error

	// CompleteSession marks a session as ended and stores its final counters.
	CompleteSession(ctx context.Context, id string, summary Completion) error

	// GetSession retrieves a session by its ID.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns sessions, newest first. A limit of 0 returns all.
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	// Lines returns the raw lines of a session in index order.
	Lines(ctx context.Context, id string) ([]*Line, error)

	// Records returns the decoded events of a session in index order.
	Records(ctx context.Context, id string) ([]*Record, error)

	// Close closes the store and releases any resources.
	Close() error
}
