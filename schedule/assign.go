package schedule

import (
	"sort"
	"time"

	"github.com/taskweave/taskweave/task"
)

// Assignment is a resolved placement for one task: a complete contiguous
// run of slots covering its full duration within a single day.
type Assignment struct {
	Task  *task.Task
	Start time.Time
	End   time.Time
}

// Unplaced records a task that received no placement this cycle. This is
// a normal outcome, not an error; the task is retried next cycle.
type Unplaced struct {
	Task   *task.Task
	Reason string
}

// Assign computes placements for needsPlacement against the slot
// sequence.
//
// Policy, in order: slots overlapping an already-placed task are seeded as
// occupied; tasks are served rank ascending (stable, so arrival order
// breaks ties); each task takes the earliest run of enough contiguous free
// slots within one day, preferring a run that starts on or before its due
// date when one exists. The due date never blocks placement. No other
// heuristic is applied.
func Assign(needsPlacement, alreadyPlaced []*task.Task, slots []Slot, slotMinutes int) ([]Assignment, []Unplaced) {
	for _, t := range alreadyPlaced {
		if t.ScheduledStart == nil || t.ScheduledEnd == nil {
			continue
		}
		occupyRange(slots, *t.ScheduledStart, *t.ScheduledEnd)
	}

	ordered := make([]*task.Task, len(needsPlacement))
	copy(ordered, needsPlacement)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rankOf(ordered[i]) < rankOf(ordered[j])
	})

	var (
		assignments []Assignment
		unplaced    []Unplaced
	)
	for _, t := range ordered {
		if t.DurationMinutes <= 0 {
			unplaced = append(unplaced, Unplaced{Task: t, Reason: "no duration"})
			continue
		}
		needed := (t.DurationMinutes + slotMinutes - 1) / slotMinutes

		idx := -1
		if t.DueDate != nil {
			idx = findRun(slots, needed, t.DueDate)
		}
		if idx < 0 {
			idx = findRun(slots, needed, nil)
		}
		if idx < 0 {
			unplaced = append(unplaced, Unplaced{Task: t, Reason: "no contiguous slots fit"})
			continue
		}

		for i := idx; i < idx+needed; i++ {
			slots[i].Occupied = true
		}
		assignments = append(assignments, Assignment{
			Task:  t,
			Start: slots[idx].Start,
			End:   slots[idx+needed-1].End,
		})
	}
	return assignments, unplaced
}

// occupyRange marks every slot overlapping [start, end) as occupied.
func occupyRange(slots []Slot, start, end time.Time) {
	for i := range slots {
		if slots[i].Start.Before(end) && slots[i].End.After(start) {
			slots[i].Occupied = true
		}
	}
}

func rankOf(t *task.Task) float64 {
	if t.Rank == nil {
		return 0
	}
	return *t.Rank
}

// findRun returns the index of the earliest run of n contiguous free
// slots that does not cross a day boundary. When due is non-nil, only
// runs starting on or before the due date's day qualify; compared at day
// granularity in the slot's own location.
func findRun(slots []Slot, n int, due *time.Time) int {
	if n <= 0 {
		return -1
	}
scan:
	for i := 0; i+n <= len(slots); i++ {
		if slots[i].Occupied {
			continue
		}
		if due != nil && dayAfter(slots[i].Start, *due) {
			// Slots are ordered, so no later run can qualify either.
			return -1
		}
		for j := i + 1; j < i+n; j++ {
			if slots[j].Occupied ||
				!slots[j].Start.Equal(slots[j-1].End) ||
				!sameDay(slots[j].Start, slots[i].Start) {
				continue scan
			}
		}
		return i
	}
	return -1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// dayAfter reports whether t falls on a later calendar day than limit.
func dayAfter(t, limit time.Time) bool {
	ty, tm, td := t.Date()
	ly, lm, ld := limit.In(t.Location()).Date()
	if ty != ly {
		return ty > ly
	}
	if tm != lm {
		return tm > lm
	}
	return td > ld
}
