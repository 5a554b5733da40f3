package task

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	owner             TEXT NOT NULL DEFAULT '',
	rank              REAL,
	duration_minutes  INTEGER NOT NULL DEFAULT 0,
	due_date          DATETIME,
	status            TEXT NOT NULL,
	auto_schedule     INTEGER NOT NULL DEFAULT 1,
	scheduled_start   DATETIME,
	scheduled_end     DATETIME,
	last_scheduled_at DATETIME,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);
`

// SQLiteStore is a local Store implementation. It exists for development
// and tests; production runs against the Notion client.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new task and sets its ID.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(id, title, owner, rank, duration_minutes, due_date, status, auto_schedule,
			 scheduled_start, scheduled_end, last_scheduled_at, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Owner, nullFloat(t.Rank), t.DurationMinutes,
		nullTime(t.DueDate), string(t.Status), boolInt(t.AutoSchedule),
		nullTime(t.ScheduledStart), nullTime(t.ScheduledEnd), nullTime(t.LastScheduledAt),
		now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListSchedulable returns candidate tasks ordered by rank ascending.
// Owner and status filtering happen in SQL; the rank-present rule too.
func (s *SQLiteStore) ListSchedulable(ctx context.Context, owner string) ([]*Task, error) {
	query := selectCols + `
		FROM tasks
		WHERE status NOT IN (?, ?, ?)
		  AND rank IS NOT NULL
		  AND auto_schedule = 1`
	args := []any{string(StatusCompleted), string(StatusCanceled), string(StatusBacklog)}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY rank ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedulable tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateSchedule writes the placement fields for one task.
func (s *SQLiteStore) UpdateSchedule(ctx context.Context, id string, start, end, scheduledAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			scheduled_start = ?, scheduled_end = ?, last_scheduled_at = ?, updated_at = ?
		WHERE id = ?`,
		start.UTC(), end.UTC(), scheduledAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

const selectCols = `SELECT id, title, owner, rank, duration_minutes, due_date, status,
	auto_schedule, scheduled_start, scheduled_end, last_scheduled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t      Task
		rank   sql.NullFloat64
		due    sql.NullTime
		start  sql.NullTime
		end    sql.NullTime
		lastAt sql.NullTime
		auto   int
	)
	err := row.Scan(&t.ID, &t.Title, &t.Owner, &rank, &t.DurationMinutes, &due,
		&t.Status, &auto, &start, &end, &lastAt)
	if err != nil {
		return nil, err
	}
	t.AutoSchedule = auto != 0
	if rank.Valid {
		t.Rank = &rank.Float64
	}
	t.DueDate = timePtr(due)
	t.ScheduledStart = timePtr(start)
	t.ScheduledEnd = timePtr(end)
	t.LastScheduledAt = timePtr(lastAt)
	return &t, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
