// Package task defines the schedulable work item model and the store
// boundary to the remote task database.
package task

import (
	"context"
	"errors"
	"time"
)

// Status represents the lifecycle state of a task in the remote store.
type Status string

const (
	StatusTodo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusBacklog    Status = "Backlog"
	StatusCompleted  Status = "Completed"
	StatusCanceled   Status = "Canceled"
)

// Terminal reports whether the status marks finished work. Terminal tasks
// are never (re)scheduled.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Excluded reports whether the status removes a task from scheduling
// without the task being finished.
func (s Status) Excluded() bool {
	return s == StatusBacklog
}

// Task is a unit of schedulable work, owned by the remote store. The
// scheduler only ever writes back ScheduledStart, ScheduledEnd, and
// LastScheduledAt.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Owner           string     `json:"owner,omitempty"`
	Rank            *float64   `json:"rank,omitempty"` // lower = higher priority; nil excludes the task
	DurationMinutes int        `json:"duration_minutes"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Status          Status     `json:"status"`
	AutoSchedule    bool       `json:"auto_schedule"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end,omitempty"`
	LastScheduledAt *time.Time `json:"last_scheduled_at,omitempty"`
	URL             string     `json:"url,omitempty"`
}

// Schedulable reports whether the task is a candidate for this cycle:
// owned by owner (when an owner filter is configured), carrying a rank,
// opted in to auto-scheduling, and in a non-terminal, non-excluded status.
func (t *Task) Schedulable(owner string) bool {
	if t.Status.Terminal() || t.Status.Excluded() {
		return false
	}
	if t.Rank == nil {
		return false
	}
	if !t.AutoSchedule {
		return false
	}
	if owner != "" && t.Owner != owner {
		return false
	}
	return true
}

// Stale reports whether the task's placement has elapsed without the task
// completing. Stale tasks are re-planned on the next cycle.
func (t *Task) Stale(now time.Time) bool {
	return t.ScheduledStart != nil && !t.ScheduledStart.After(now) && !t.Status.Terminal()
}

// ErrNotFound is returned by stores when a task ID does not exist.
var ErrNotFound = errors.New("task not found")

// Store is the boundary to the system of record for tasks. The remote
// Notion database is the production implementation; SQLiteStore backs
// local development and tests.
type Store interface {
	// ListSchedulable returns candidate tasks for a cycle: assigned to
	// owner (empty matches all), non-terminal, non-excluded, rank present.
	ListSchedulable(ctx context.Context, owner string) ([]*Task, error)

	// UpdateSchedule writes the task's placement. Only the scheduled
	// start/end and the last-scheduled marker are touched; the write is
	// idempotent (last-write-wins on those three fields).
	UpdateSchedule(ctx context.Context, id string, start, end, scheduledAt time.Time) error
}
