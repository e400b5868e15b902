// Package sqlite is the durable sink behind the budget ledger. Events are
// append-only; the store never updates or deletes rows.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

// Store implements ledger.Sink with a SQLite database.
type Store struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	model_id TEXT NOT NULL,
	task_type TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	latency_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_events(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_events(created_at);
`

// New opens the store and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage db: %w", err)
	}
	return &Store{db: db}, nil
}

// Append stores one usage event and returns its row id.
func (s *Store) Append(ctx context.Context, ev models.UsageEvent) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (user_id, role, model_id, task_type, input_tokens, output_tokens, cost, latency_ms, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.UserID, string(ev.Role), ev.ModelID, string(ev.TaskType),
		ev.InputTokens, ev.OutputTokens, ev.Cost, ev.LatencyMS,
		ev.Success, ev.Error, ev.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("append usage event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append usage event id: %w", err)
	}
	return id, nil
}

// LoadCurrentMonth returns all events recorded since the first day of the
// month containing now, oldest first.
func (s *Store) LoadCurrentMonth(ctx context.Context, now time.Time) ([]models.UsageEvent, error) {
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, model_id, task_type, input_tokens, output_tokens, cost, latency_ms, success, error, created_at
		 FROM usage_events WHERE created_at >= ? ORDER BY created_at ASC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("load current month: %w", err)
	}
	defer rows.Close()

	var events []models.UsageEvent
	for rows.Next() {
		var ev models.UsageEvent
		var role, task string
		if err := rows.Scan(&ev.ID, &ev.UserID, &role, &ev.ModelID, &task,
			&ev.InputTokens, &ev.OutputTokens, &ev.Cost, &ev.LatencyMS,
			&ev.Success, &ev.Error, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		ev.Role = models.Role(role)
		ev.TaskType = models.TaskType(task)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
