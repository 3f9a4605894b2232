package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ODCA117/ratchat/internal/store"
)

// Schema is the journal schema. It is applied on every New and is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conn_id         TEXT NOT NULL UNIQUE,
	client_id       INTEGER NOT NULL,
	name            TEXT NOT NULL,
	transport       TEXT NOT NULL,
	remote_addr     TEXT NOT NULL DEFAULT '',
	connected_at    DATETIME NOT NULL,
	disconnected_at DATETIME,
	reason          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_connected ON sessions(connected_at DESC);
`

// SQLiteStore implements store.Journal for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite journal and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:"
	// databases alive across queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OpenSession inserts a journal row and fills rec.ID.
func (s *SQLiteStore) OpenSession(ctx context.Context, rec *store.SessionRecord) error {
	query := `
		INSERT INTO sessions (conn_id, client_id, name, transport, remote_addr, connected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		rec.ConnID,
		rec.ClientID,
		rec.Name,
		rec.Transport,
		rec.RemoteAddr,
		rec.ConnectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// CloseSession records when and why a session ended.
func (s *SQLiteStore) CloseSession(ctx context.Context, connID string, at time.Time, reason string) error {
	query := `
		UPDATE sessions
		SET disconnected_at = ?, reason = ?
		WHERE conn_id = ? AND disconnected_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), reason, connID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", connID, store.ErrNotFound)
	}
	return nil
}

// GetSession retrieves a journal row by connection id.
func (s *SQLiteStore) GetSession(ctx context.Context, connID string) (*store.SessionRecord, error) {
	query := `
		SELECT id, conn_id, client_id, name, transport, remote_addr, connected_at, disconnected_at, reason
		FROM sessions
		WHERE conn_id = ?
	`
	rec, err := scanSession(s.db.QueryRowContext(ctx, query, connID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", connID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return rec, nil
}

// RecentSessions lists the newest journal rows first.
func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]*store.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conn_id, client_id, name, transport, remote_addr, connected_at, disconnected_at, reason
		FROM sessions
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*store.SessionRecord, 0, limit)
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// CloseOpenSessions settles rows that never got a disconnect time.
func (s *SQLiteStore) CloseOpenSessions(ctx context.Context, at time.Time, reason string) (int64, error) {
	query := `
		UPDATE sessions
		SET disconnected_at = ?, reason = ?
		WHERE disconnected_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("close open sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*store.SessionRecord, error) {
	var (
		rec          store.SessionRecord
		disconnected sql.NullTime
	)
	err := row.Scan(
		&rec.ID,
		&rec.ConnID,
		&rec.ClientID,
		&rec.Name,
		&rec.Transport,
		&rec.RemoteAddr,
		&rec.ConnectedAt,
		&disconnected,
		&rec.Reason,
	)
	if err != nil {
		return nil, err
	}
	if disconnected.Valid {
		t := disconnected.Time
		rec.DisconnectedAt = &t
	}
	return &rec, nil
}
