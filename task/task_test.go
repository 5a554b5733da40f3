package task

import (
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func tp(t time.Time) *time.Time { return &t }

func TestStatusSets(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		excluded bool
	}{
		{StatusTodo, false, false},
		{StatusInProgress, false, false},
		{StatusBacklog, false, true},
		{StatusCompleted, true, false},
		{StatusCanceled, true, false},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.Excluded(); got != tt.excluded {
			t.Errorf("%s.Excluded() = %v, want %v", tt.status, got, tt.excluded)
		}
	}
}

func TestTaskSchedulable(t *testing.T) {
	base := func() *Task {
		return &Task{
			ID: "t", Owner: "alice", Rank: f64(1),
			DurationMinutes: 30, Status: StatusTodo, AutoSchedule: true,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Task)
		owner  string
		want   bool
	}{
		{"candidate", func(*Task) {}, "alice", true},
		{"any owner when filter empty", func(*Task) {}, "", true},
		{"wrong owner", func(*Task) {}, "bob", false},
		{"no rank", func(tk *Task) { tk.Rank = nil }, "alice", false},
		{"opted out", func(tk *Task) { tk.AutoSchedule = false }, "alice", false},
		{"completed", func(tk *Task) { tk.Status = StatusCompleted }, "alice", false},
		{"canceled", func(tk *Task) { tk.Status = StatusCanceled }, "alice", false},
		{"backlog", func(tk *Task) { tk.Status = StatusBacklog }, "alice", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := base()
			tt.mutate(tk)
			if got := tk.Schedulable(tt.owner); got != tt.want {
				t.Errorf("Schedulable(%q) = %v, want %v", tt.owner, got, tt.want)
			}
		})
	}
}

func TestTaskStale(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		task  Task
		stale bool
	}{
		{"never scheduled", Task{Status: StatusTodo}, false},
		{"future", Task{Status: StatusTodo, ScheduledStart: tp(now.Add(time.Hour))}, false},
		{"elapsed in progress", Task{Status: StatusInProgress, ScheduledStart: tp(now.Add(-time.Hour))}, true},
		{"starts exactly now", Task{Status: StatusTodo, ScheduledStart: tp(now)}, true},
		{"elapsed but completed", Task{Status: StatusCompleted, ScheduledStart: tp(now.Add(-time.Hour))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Stale(now); got != tt.stale {
				t.Errorf("Stale() = %v, want %v", got, tt.stale)
			}
		})
	}
}
