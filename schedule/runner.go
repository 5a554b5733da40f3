package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskweave/taskweave/task"
)

// ErrCycleInFlight is returned when a cycle is requested while another is
// still running. Overlapping timer ticks and manual triggers are rejected,
// never queued.
var ErrCycleInFlight = errors.New("scheduling cycle already in flight")

// State is the runner's position in the cycle state machine.
type State string

const (
	StateIdle         State = "idle"
	StateFetching     State = "fetching"
	StatePartitioning State = "partitioning"
	StateAssigning    State = "assigning"
	StateWritingBack  State = "writing_back"
)

// CycleStats summarizes one scheduling cycle. It is overwritten, not
// accumulated, each cycle.
type CycleStats struct {
	Scheduled   int           `json:"scheduled"`
	Rescheduled int           `json:"rescheduled"`
	Skipped     int           `json:"skipped"`
	Errors      int           `json:"errors"`
	Unchanged   int           `json:"unchanged"`
	Duration    time.Duration `json:"duration"`
}

// Status is the runner's snapshot for the control surface.
type Status struct {
	Running         bool        `json:"running"`
	State           State       `json:"state"`
	LastRun         *time.Time  `json:"last_run,omitempty"`
	LastStats       *CycleStats `json:"last_stats,omitempty"`
	LastError       string      `json:"last_error,omitempty"`
	TicksSkipped    int         `json:"ticks_skipped"`
	WorkHours       string      `json:"work_hours"`
	SlotMinutes     int         `json:"slot_minutes"`
	HorizonDays     int         `json:"horizon_days"`
	IntervalMinutes int         `json:"interval_minutes"`
	Timezone        string      `json:"timezone"`
}

// Observer receives cycle outcomes; the metrics package implements it.
type Observer interface {
	ObserveCycle(stats CycleStats)
	ObserveTickSkipped()
}

// Runner orchestrates scheduling cycles. Exactly one cycle runs at a
// time; the mutex guards the in-flight flag and the last-cycle snapshot,
// the only shared mutable state.
type Runner struct {
	store    task.Store
	cal      Calendar
	writer   *Writer
	owner    string
	interval time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mu           sync.Mutex
	running      bool
	state        State
	lastRun      *time.Time
	lastStats    *CycleStats
	lastErr      string
	ticksSkipped int
}

// NewRunner creates a Runner over the given store and calendar.
func NewRunner(store task.Store, cal Calendar, writer *Writer, owner string, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		store:    store,
		cal:      cal,
		writer:   writer,
		owner:    owner,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		state:    StateIdle,
	}
}

// SetObserver attaches a cycle observer. Call before Start.
func (r *Runner) SetObserver(o Observer) { r.observer = o }

// SetClock overrides the time source; for tests.
func (r *Runner) SetClock(now func() time.Time) { r.now = now }

// Start runs one cycle immediately, then fires on the configured interval
// until ctx is canceled. Ticks that land while a cycle is still running
// are skipped, and the skip is visible in Status.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("scheduler loop started", slog.Duration("interval", r.interval))
	r.tick(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler loop stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if _, err := r.RunCycle(ctx); errors.Is(err, ErrCycleInFlight) {
		r.mu.Lock()
		r.ticksSkipped++
		r.mu.Unlock()
		if r.observer != nil {
			r.observer.ObserveTickSkipped()
		}
		r.logger.Warn("cycle still in flight, skipping tick")
	}
}

// RunCycle executes one full scheduling pass: fetch, partition, generate
// slots, assign, write back. It returns ErrCycleInFlight if another cycle
// is running. All other failures are folded into the returned stats (and
// Status.LastError) rather than propagated; the scheduler never crashes
// the host process.
func (r *Runner) RunCycle(ctx context.Context) (stats CycleStats, err error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return CycleStats{}, ErrCycleInFlight
	}
	r.running = true
	r.state = StateFetching
	r.mu.Unlock()

	cycleID := uuid.NewString()[:8]
	started := r.now()
	logger := r.logger.With(slog.String("cycle", cycleID))
	logger.Info("scheduling cycle started")

	var lastErr string
	defer func() {
		stats.Duration = r.now().Sub(started)
		r.mu.Lock()
		r.running = false
		r.state = StateIdle
		runAt := started
		r.lastRun = &runAt
		snapshot := stats
		r.lastStats = &snapshot
		r.lastErr = lastErr
		r.mu.Unlock()
		if r.observer != nil {
			r.observer.ObserveCycle(stats)
		}
		logger.Info("scheduling cycle complete",
			slog.Int("scheduled", stats.Scheduled),
			slog.Int("rescheduled", stats.Rescheduled),
			slog.Int("skipped", stats.Skipped),
			slog.Int("errors", stats.Errors),
			slog.Duration("duration", stats.Duration),
		)
	}()

	fetched, err := r.store.ListSchedulable(ctx, r.owner)
	if err != nil {
		// A total fetch failure is a no-op cycle, retried next interval.
		stats.Errors = 1
		lastErr = fmt.Sprintf("fetch tasks: %v", err)
		logger.Error("fetch tasks failed", slog.Any("error", err))
		return stats, nil
	}

	// Post-filter in case the backing query could not express every rule.
	candidates := fetched[:0:0]
	for _, t := range fetched {
		if t.Schedulable(r.owner) {
			candidates = append(candidates, t)
		}
	}
	logger.Info("fetched schedulable tasks",
		slog.Int("candidates", len(candidates)),
		slog.Int("fetched", len(fetched)),
	)

	now := r.now()
	r.setState(StatePartitioning)
	needs, placed := Partition(candidates, now)

	r.setState(StateAssigning)
	slots := r.cal.Generate(now)
	assignments, unplaced := Assign(needs, placed, slots, r.cal.SlotMinutes)

	r.setState(StateWritingBack)
	for _, a := range assignments {
		reschedule := a.Task.ScheduledStart != nil
		if err := r.writer.Apply(ctx, a); err != nil {
			stats.Errors++
			lastErr = err.Error()
			logger.Error("write back failed",
				slog.String("task", a.Task.Title),
				slog.Any("error", err),
			)
			continue
		}
		if reschedule {
			stats.Rescheduled++
		} else {
			stats.Scheduled++
		}
	}

	stats.Skipped = len(unplaced)
	stats.Unchanged = len(placed)
	for _, u := range unplaced {
		logger.Warn("task not placed",
			slog.String("task", u.Task.Title),
			slog.String("reason", u.Reason),
		)
	}
	return stats, nil
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Status returns the last-cycle snapshot and configuration echo.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		Running:         r.running,
		State:           r.state,
		LastError:       r.lastErr,
		TicksSkipped:    r.ticksSkipped,
		WorkHours:       fmt.Sprintf("%02d:00-%02d:00", r.cal.WorkStartHour, r.cal.WorkEndHour),
		SlotMinutes:     r.cal.SlotMinutes,
		HorizonDays:     r.cal.HorizonDays,
		IntervalMinutes: int(r.interval / time.Minute),
	}
	if r.cal.Location != nil {
		st.Timezone = r.cal.Location.String()
	}
	if r.lastRun != nil {
		runAt := *r.lastRun
		st.LastRun = &runAt
	}
	if r.lastStats != nil {
		snapshot := *r.lastStats
		st.LastStats = &snapshot
	}
	return st
}

// Healthy reports whether the runner is configured and its most recent
// cycle did not end in an error.
func (r *Runner) Healthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr == ""
}
