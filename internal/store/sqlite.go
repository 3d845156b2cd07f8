package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/attent-app/attent/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		machine_id TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_user_time ON snapshots(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ResolveOrCreateUser returns the user id for a machine id, creating the user
// on first contact. INSERT OR IGNORE plus a read keeps this idempotent under
// concurrent registrations of the same machine.
func (s *SQLiteStore) ResolveOrCreateUser(ctx context.Context, machineID, username string) (int64, error) {
	if machineID == "" {
		return 0, fmt.Errorf("machine id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (machine_id, username, created_at) VALUES (?, ?, ?)`,
		machineID, username, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE machine_id = ?`, machineID)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve user id: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recent AppState for a user, or nil if the
// user has never been persisted.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, userID int64) (*domain.AppState, error) {
	query := `
		SELECT state_json FROM snapshots
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var stateJSON string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan latest snapshot: %w", err)
	}

	var state domain.AppState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("decode snapshot state: %w", err)
	}
	return &state, nil
}

// AppendSnapshot records a new immutable snapshot row. Rows are never
// updated or deleted.
func (s *SQLiteStore) AppendSnapshot(ctx context.Context, userID int64, state *domain.AppState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (user_id, created_at, state_json) VALUES (?, ?, ?)`,
		userID, time.Now().Unix(), string(stateJSON),
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// ActivityBetween returns the activity snapshots recorded in [start, end),
// ordered by observation time.
func (s *SQLiteStore) ActivityBetween(ctx context.Context, userID int64, start, end time.Time) ([]domain.ObservedActivity, error) {
	query := `
		SELECT state_json, created_at FROM snapshots
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query activity window: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close activity rows", "error", closeErr)
		}
	}()

	var observed []domain.ObservedActivity
	for rows.Next() {
		var stateJSON string
		var createdAt int64
		if err := rows.Scan(&stateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}

		var state domain.AppState
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			// Skip rows written by incompatible older builds.
			slog.Warn("skipping undecodable snapshot", "user_id", userID, "error", err)
			continue
		}
		observed = append(observed, domain.ObservedActivity{
			Activity: state.Activity,
			At:       time.Unix(createdAt, 0),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity window: %w", err)
	}
	return observed, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
