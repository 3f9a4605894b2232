package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a journal row does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is one row of the session journal: a client that completed
// the handshake, and when and why it left. Chat text is never stored.
type SessionRecord struct {
	ID             int64
	ConnID         string
	ClientID       uint32
	Name           string
	Transport      string
	RemoteAddr     string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
	Reason         string
}

// Journal records session lifecycle for auditing.
type Journal interface {
	// OpenSession inserts a row for a session that just joined.
	OpenSession(ctx context.Context, rec *SessionRecord) error

	// CloseSession marks the session identified by connID as finished.
	CloseSession(ctx context.Context, connID string, at time.Time, reason string) error

	// GetSession retrieves a row by connection id.
	GetSession(ctx context.Context, connID string) (*SessionRecord, error)

	// RecentSessions lists the most recent rows, newest first.
	RecentSessions(ctx context.Context, limit int) ([]*SessionRecord, error)

	// CloseOpenSessions marks every unfinished row as closed. Used at startup
	// to settle rows left by an unclean shutdown.
	CloseOpenSessions(ctx context.Context, at time.Time, reason string) (int64, error)

	// Close closes the underlying database connection.
	Close() error
}
