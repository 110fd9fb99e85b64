package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-live/internal/store"
)

// Schema creates the message log table. Index positions are dense per room and
// start at zero.
const Schema = `
	CREATE TABLE IF NOT EXISTS messages (
		room TEXT    NOT NULL,
		idx  INTEGER NOT NULL,
		line TEXT    NOT NULL,
		PRIMARY KEY (room, idx)
	);
`

// SQLiteStore implements store.MessageStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.MessageStore = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also serializes appends.
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

// Append inserts line at the next free index for room inside one transaction.
func (s *SQLiteStore) Append(ctx context.Context, room, line string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.Unavailable("begin append", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(idx) + 1, 0)
		FROM messages
		WHERE room = ?
	`, room).Scan(&next)
	if err != nil {
		return 0, store.Unavailable("select next index", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (room, idx, line)
		VALUES (?, ?, ?)
	`, room, next, line); err != nil {
		return 0, store.Unavailable("insert message", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, store.Unavailable("commit append", err)
	}
	return next + 1, nil
}

// Len counts the stored lines of room.
func (s *SQLiteStore) Len(ctx context.Context, room string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE room = ?
	`, room).Scan(&n)
	if err != nil {
		return 0, store.Unavailable("count messages", err)
	}
	return n, nil
}

// Range pages through room with LIMIT queries so no rows handle outlives a page.
func (s *SQLiteStore) Range(ctx context.Context, room string, start int64) iter.Seq2[string, error] {
	length := func(ctx context.Context) (int64, error) { return s.Len(ctx, room) }
	return store.Paged(ctx, start, store.DefaultPageSize, length, func(ctx context.Context, from int64, limit int) ([]string, error) {
		return s.listLines(ctx, room, from, limit)
	})
}

func (s *SQLiteStore) listLines(ctx context.Context, room string, from int64, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line
		FROM messages
		WHERE room = ? AND idx >= ?
		ORDER BY idx ASC
		LIMIT ?
	`, room, from, limit)
	if err != nil {
		return nil, store.Unavailable("query messages", err)
	}
	defer rows.Close()

	lines := make([]string, 0, limit)
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, store.Unavailable("scan message", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("iterate messages", err)
	}
	return lines, nil
}
