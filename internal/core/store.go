package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sohaibzafar701/robofleet/internal/tasks"
	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// HistoryStore is a SQLite-backed record of terminal tasks.
type HistoryStore struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

// TaskRecord is one persisted terminal task.
type TaskRecord struct {
	TaskID          string
	Description     string
	RobotID         string
	Status          api.TaskStatus
	AssignedAt      time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
	DurationSeconds float64
	RecordedAt      time.Time
}

func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// Record persists one terminal assignment. Implements tasks.History.
func (s *HistoryStore) Record(a tasks.Assignment, status api.TaskStatus) error {
	var durationSeconds float64
	if d, ok := a.Duration(); ok {
		durationSeconds = d.Seconds()
	}
	_, err := s.db.Exec(`
INSERT INTO task_history (task_id, description, robot_id, status, assigned_at, started_at, completed_at, duration_seconds)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
    status = excluded.status,
    completed_at = excluded.completed_at,
    duration_seconds = excluded.duration_seconds`,
		a.Task.TaskID, a.Task.Description, a.RobotID, string(status),
		nullTime(a.AssignedAt), nullTime(a.StartedAt), nullTime(a.CompletedAt), durationSeconds)
	if err != nil {
		return fmt.Errorf("insert task history: %w", err)
	}
	return nil
}

// RecentTasks returns the newest terminal records, latest first.
func (s *HistoryStore) RecentTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT task_id, description, robot_id, status, assigned_at, started_at, completed_at, duration_seconds, recorded_at
FROM task_history ORDER BY recorded_at DESC, task_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query task history: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var status string
		var assigned, started, completed sql.NullTime
		if err := rows.Scan(&rec.TaskID, &rec.Description, &rec.RobotID, &status,
			&assigned, &started, &completed, &rec.DurationSeconds, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan task history: %w", err)
		}
		rec.Status = api.TaskStatus(status)
		rec.AssignedAt = assigned.Time
		rec.StartedAt = started.Time
		rec.CompletedAt = completed.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *HistoryStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *HistoryStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
