package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"hint-agent/internal/domain"
)

var openDB = sql.Open

// SQLiteStore keeps session state in a local database file for the CLI.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository: sqlite path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("repository: create data dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("repository: pragma %q: %w", p, err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS session_state (
			id         TEXT PRIMARY KEY,
			state      TEXT    NOT NULL,
			version    INTEGER NOT NULL,
			updated_at TEXT    NOT NULL DEFAULT (datetime('now'))
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (domain.ConversationState, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM session_state WHERE id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ConversationState{}, false, nil
	}
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: sqlite load: %w", err)
	}
	var state domain.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: sqlite decode: %w", err)
	}
	return state.Normalize(), true, nil
}

// Save upserts state when the stored version is exactly one behind.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, state domain.ConversationState) error {
	if state.Version < 1 {
		return errors.New("repository: sqlite save: version must be positive")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("repository: sqlite encode: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO session_state (id, state, version, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			version = excluded.version,
			updated_at = excluded.updated_at
		WHERE session_state.version = excluded.version - 1`,
		sessionID, string(raw), state.Version)
	if err != nil {
		return fmt.Errorf("repository: sqlite save: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: sqlite save: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("repository: sqlite save: %w", domain.ErrVersionConflict)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("repository: sqlite delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: sqlite delete: %w", err)
	}
	return n > 0, nil
}
