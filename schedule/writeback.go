package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskweave/taskweave/retry"
	"github.com/taskweave/taskweave/task"
)

// Writer persists assignments back to the task store, one at a time, with
// bounded retry on transient failures. Writing the same assignment twice
// leaves the task's scheduled fields unchanged from the first write.
type Writer struct {
	store  task.Store
	policy retry.Policy
	logger *slog.Logger
	dryRun bool
	now    func() time.Time
}

// NewWriter creates a Writer over the given store.
func NewWriter(store task.Store, policy retry.Policy, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SetDryRun makes Apply log the would-be placement instead of writing it.
func (w *Writer) SetDryRun(on bool) { w.dryRun = on }

// SetClock overrides the time source; for tests.
func (w *Writer) SetClock(now func() time.Time) { w.now = now }

// Apply writes one assignment's scheduled start/end and the last-scheduled
// marker. A transient store error is retried per the policy; exhaustion or
// a permanent error is returned to the caller, which demotes the task to
// errored for the cycle without aborting sibling writes.
func (w *Writer) Apply(ctx context.Context, a Assignment) error {
	if w.dryRun {
		w.logger.Info("dry run: would schedule task",
			slog.String("task", a.Task.Title),
			slog.Time("start", a.Start),
			slog.Time("end", a.End),
		)
		return nil
	}
	scheduledAt := w.now()
	err := w.policy.Do(ctx, func(ctx context.Context) error {
		return w.store.UpdateSchedule(ctx, a.Task.ID, a.Start, a.End, scheduledAt)
	})
	if err != nil {
		return fmt.Errorf("write back task %s: %w", a.Task.ID, err)
	}
	w.logger.Info("scheduled task",
		slog.String("task", a.Task.Title),
		slog.Time("start", a.Start),
		slog.Time("end", a.End),
	)
	return nil
}
