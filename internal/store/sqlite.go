package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tlane/browserpilot/internal/model"

	_ "modernc.org/sqlite"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id               TEXT PRIMARY KEY,
    status           TEXT NOT NULL,
    request          TEXT NOT NULL,
    result           TEXT NOT NULL DEFAULT '',
    error            TEXT NOT NULL DEFAULT '',
    screenshot_path  TEXT NOT NULL DEFAULT '',
    started_at       DATETIME NOT NULL,
    completed_at     DATETIME,
    duration_seconds REAL
)`

const createTaskLogsTable = `
CREATE TABLE IF NOT EXISTS task_logs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id    TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    line       TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. It is the optional durable
// backend; the request is stored as a JSON column since the core never
// queries into it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createTasksTable, createTaskLogsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migration: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTask inserts a new task record.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *model.Task) error {
	reqJSON, err := json.Marshal(t.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (
			id, status, request, result, error, screenshot_path,
			started_at, completed_at, duration_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Status, string(reqJSON), t.Result, t.Error, t.ScreenshotPath,
		t.StartedAt, t.CompletedAt, t.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

const taskColumns = `id, status, request, result, error, screenshot_path,
	started_at, completed_at, duration_seconds`

// scanner abstracts *sql.Row and *sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*model.Task, error) {
	t := &model.Task{}
	var reqJSON string
	if err := row.Scan(
		&t.ID, &t.Status, &reqJSON, &t.Result, &t.Error, &t.ScreenshotPath,
		&t.StartedAt, &t.CompletedAt, &t.DurationSeconds,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reqJSON), &t.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask loads the record, applies the mutator, validates the status
// transition, and writes the result back inside a single transaction.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, mutate func(*model.Task) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	cur, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load task for update: %w", err)
	}

	prevStatus := cur.Status
	if err := mutate(cur); err != nil {
		return err
	}
	if cur.Status != prevStatus && !model.ValidTransition(prevStatus, cur.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prevStatus, cur.Status)
	}

	reqJSON, err := json.Marshal(cur.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET
			status = ?, request = ?, result = ?, error = ?, screenshot_path = ?,
			completed_at = ?, duration_seconds = ?
		WHERE id = ?`,
		cur.Status, string(reqJSON), cur.Result, cur.Error, cur.ScreenshotPath,
		cur.CompletedAt, cur.DurationSeconds, id,
	); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// DeleteTask removes a task and its progress lines.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM task_logs WHERE task_id = ?", id); err != nil {
		return fmt.Errorf("delete task logs: %w", err)
	}
	return nil
}

// ListTasks returns tasks ordered by started_at DESC filtered by exact status
// match, along with the total count of all tasks regardless of the filter.
func (s *SQLiteStore) ListTasks(ctx context.Context, status string, limit int) ([]*model.Task, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited.
	}

	query := `SELECT ` + taskColumns + ` FROM tasks `
	args := []any{}
	if status != "" {
		query += "WHERE status = ? "
		args = append(args, status)
	}
	query += "ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, total, nil
}

// TaskStats returns aggregate counts and the average terminal duration.
func (s *SQLiteStore) TaskStats(ctx context.Context) (*TaskStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &TaskStats{CountByStatus: make(map[string]int)}

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT AVG(duration_seconds) FROM tasks WHERE duration_seconds IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationSeconds = avg.Float64
	}

	return stats, nil
}

// AppendLog persists one progress line for a task.
func (s *SQLiteStore) AppendLog(ctx context.Context, taskID string, seq int, line string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_logs (task_id, seq, line, created_at) VALUES (?, ?, ?, ?)",
		taskID, seq, line, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert progress line: %w", err)
	}
	return nil
}

// ListLogs returns the progress lines for a task in sequence order.
func (s *SQLiteStore) ListLogs(ctx context.Context, taskID string) ([]model.LogLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, seq, line, created_at
		FROM task_logs WHERE task_id = ? ORDER BY seq ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress lines: %w", err)
	}
	defer rows.Close()

	var lines []model.LogLine
	for rows.Next() {
		var l model.LogLine
		if err := rows.Scan(&l.ID, &l.TaskID, &l.Seq, &l.Line, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan progress line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress lines: %w", err)
	}

	return lines, nil
}
