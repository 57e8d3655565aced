// Package history persists a log of search and tool-call operations so a
// UI collaborator can show recent activity. The core itself never reads
// its own history back into a decision (no caching of results).
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one recorded search or tool-call operation.
type Entry struct {
	ID           string
	Kind         string // source kind; a fan-out search records one entry per source
	Operation    string // "search" or "tool_call"
	Query        string
	ToolName     string
	ResultCount  int
	DurationMs   int64
	Success      bool
	ErrorMessage string
	OccurredAt   time.Time
}

// Store persists Entry records to a SQLite database with the teacher's
// WAL + busy-timeout configuration for safe concurrent access.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if absent) history.db under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history_entries (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		operation TEXT NOT NULL,
		query TEXT,
		tool_name TEXT,
		result_count INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 1,
		error_message TEXT,
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_kind ON history_entries(kind);
	CREATE INDEX IF NOT EXISTS idx_history_occurred ON history_entries(occurred_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one history entry, assigning an id if absent.
func (s *Store) Record(e *Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if e.ID == "" {
		e.ID = "hist_" + uuid.New().String()[:8]
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO history_entries (id, kind, operation, query, tool_name, result_count, duration_ms, success, error_message, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Operation, nullableString(e.Query), nullableString(e.ToolName),
		e.ResultCount, e.DurationMs, e.Success, nullableString(e.ErrorMessage), e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert entry: %w", err)
	}

	return tx.Commit()
}

// Filter narrows List results; zero values are "don't filter on this field".
type Filter struct {
	Kind      string
	Operation string
	Limit     int
}

// List returns entries matching filter, most recent first.
func (s *Store) List(filter Filter) ([]*Entry, error) {
	query := `SELECT id, kind, operation, query, tool_name, result_count, duration_ms, success, error_message, occurred_at
		FROM history_entries WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Operation != "" {
		query += " AND operation = ?"
		args = append(args, filter.Operation)
	}
	query += " ORDER BY occurred_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var queryVal, toolName, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &e.Operation, &queryVal, &toolName,
			&e.ResultCount, &e.DurationMs, &e.Success, &errMsg, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		e.Query = queryVal.String
		e.ToolName = toolName.String
		e.ErrorMessage = errMsg.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
