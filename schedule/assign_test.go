package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskweave/taskweave/task"
)

func TestAssign_RankOrderOnEmptyCalendar(t *testing.T) {
	// Work hours 09:00-17:00, 15 min slots, two tasks on an empty Monday:
	// X (rank 1, 60 min) then Y (rank 2, 30 min, due today).
	now := at(monday, 9, 0)
	slots := testCalendar(1).Generate(now)

	due := at(monday, 0, 0)
	x := &task.Task{ID: "x", Title: "X", Rank: rank(1), DurationMinutes: 60, Status: task.StatusTodo}
	y := &task.Task{ID: "y", Title: "Y", Rank: rank(2), DurationMinutes: 30, DueDate: &due, Status: task.StatusTodo}

	assignments, unplaced := Assign([]*task.Task{y, x}, nil, slots, 15)

	require.Empty(t, unplaced)
	require.Len(t, assignments, 2)
	assert.Equal(t, "x", assignments[0].Task.ID)
	assert.Equal(t, at(monday, 9, 0), assignments[0].Start)
	assert.Equal(t, at(monday, 10, 0), assignments[0].End)
	assert.Equal(t, "y", assignments[1].Task.ID)
	assert.Equal(t, at(monday, 10, 0), assignments[1].Start)
	assert.Equal(t, at(monday, 10, 30), assignments[1].End)
}

func TestAssign_StableTieBreakOnEqualRank(t *testing.T) {
	now := at(monday, 9, 0)
	slots := testCalendar(1).Generate(now)

	first := &task.Task{ID: "first", Rank: rank(3), DurationMinutes: 30, Status: task.StatusTodo}
	second := &task.Task{ID: "second", Rank: rank(3), DurationMinutes: 30, Status: task.StatusTodo}

	assignments, _ := Assign([]*task.Task{first, second}, nil, slots, 15)

	require.Len(t, assignments, 2)
	assert.Equal(t, "first", assignments[0].Task.ID)
	assert.True(t, assignments[0].Start.Before(assignments[1].Start))
}

func TestAssign_SeedsOccupancyFromPlacedTasks(t *testing.T) {
	now := at(monday, 9, 0)
	slots := testCalendar(1).Generate(now)

	placed := &task.Task{
		ID:             "meeting",
		Status:         task.StatusTodo,
		ScheduledStart: timeAt(at(monday, 10, 0)),
		ScheduledEnd:   timeAt(at(monday, 11, 0)),
	}
	// 90 minutes does not fit before the placed block, so it lands after.
	big := &task.Task{ID: "big", Rank: rank(1), DurationMinutes: 90, Status: task.StatusTodo}

	assignments, unplaced := Assign([]*task.Task{big}, []*task.Task{placed}, slots, 15)

	require.Empty(t, unplaced)
	require.Len(t, assignments, 1)
	assert.Equal(t, at(monday, 11, 0), assignments[0].Start)
	assert.Equal(t, at(monday, 12, 30), assignments[0].End)
}

func TestAssign_NoDoubleBooking(t *testing.T) {
	now := at(monday, 9, 0)
	slots := testCalendar(2).Generate(now)

	placed := &task.Task{
		ID:             "p",
		Status:         task.StatusTodo,
		ScheduledStart: timeAt(at(monday, 13, 0)),
		ScheduledEnd:   timeAt(at(monday, 15, 0)),
	}
	var needs []*task.Task
	for i := 0; i < 8; i++ {
		r := float64(i + 1)
		needs = append(needs, &task.Task{
			ID:              string(rune('a' + i)),
			Rank:            &r,
			DurationMinutes: 75,
			Status:          task.StatusTodo,
		})
	}

	assignments, _ := Assign(needs, []*task.Task{placed}, slots, 15)

	intervals := [][2]time.Time{{*placed.ScheduledStart, *placed.ScheduledEnd}}
	for _, a := range assignments {
		intervals = append(intervals, [2]time.Time{a.Start, a.End})
	}
	for i := range intervals {
		for j := i + 1; j < len(intervals); j++ {
			overlap := intervals[i][0].Before(intervals[j][1]) && intervals[i][1].After(intervals[j][0])
			assert.False(t, overlap, "intervals %d and %d overlap", i, j)
		}
	}
}

func TestAssign_CapacityMatchesDuration(t *testing.T) {
	now := at(monday, 9, 0)
	slots := testCalendar(1).Generate(now)

	tk := &task.Task{ID: "t", Rank: rank(1), DurationMinutes: 100, Status: task.StatusTodo}
	assignments, _ := Assign([]*task.Task{tk}, nil, slots, 15)

	require.Len(t, assignments, 1)
	// ceil(100/15) = 7 slots = 105 minutes.
	assert.Equal(t, 105*time.Minute, assignments[0].End.Sub(assignments[0].Start))
}

func TestAssign_DefersToLaterDayInsteadOfSplitting(t *testing.T) {
	// Only 3 hours remain on Friday; a 5-hour task must wait for Monday
	// rather than be split across the weekend.
	now := at(friday, 14, 0)
	slots := testCalendar(7).Generate(now)

	tk := &task.Task{ID: "long", Rank: rank(1), DurationMinutes: 300, Status: task.StatusTodo}
	assignments, unplaced := Assign([]*task.Task{tk}, nil, slots, 15)

	require.Empty(t, unplaced)
	require.Len(t, assignments, 1)
	nextMonday := friday.AddDate(0, 0, 3)
	assert.Equal(t, at(nextMonday, 9, 0), assignments[0].Start)
	assert.Equal(t, at(nextMonday, 14, 0), assignments[0].End)
}

func TestAssign_DueDatePreferenceIsSoft(t *testing.T) {
	// Monday is fully booked and the task is due Monday: it is still
	// placed (on Tuesday) rather than left unscheduled.
	now := at(monday, 9, 0)
	slots := testCalendar(2).Generate(now)

	blocker := &task.Task{
		ID:             "blocker",
		Status:         task.StatusTodo,
		ScheduledStart: timeAt(at(monday, 9, 0)),
		ScheduledEnd:   timeAt(at(monday, 17, 0)),
	}
	due := at(monday, 0, 0)
	tk := &task.Task{ID: "due-mon", Rank: rank(1), DurationMinutes: 60, DueDate: &due, Status: task.StatusTodo}

	assignments, unplaced := Assign([]*task.Task{tk}, []*task.Task{blocker}, slots, 15)

	require.Empty(t, unplaced)
	require.Len(t, assignments, 1)
	tuesday := monday.AddDate(0, 0, 1)
	assert.Equal(t, at(tuesday, 9, 0), assignments[0].Start)
}

func TestAssign_PrefersPreDueRunOverEarliestAfter(t *testing.T) {
	// Monday morning is blocked but Monday afternoon is free; a task due
	// Monday goes to Monday afternoon even though the blocker was seeded
	// first.
	now := at(monday, 9, 0)
	slots := testCalendar(2).Generate(now)

	blocker := &task.Task{
		ID:             "blocker",
		Status:         task.StatusTodo,
		ScheduledStart: timeAt(at(monday, 9, 0)),
		ScheduledEnd:   timeAt(at(monday, 12, 0)),
	}
	due := at(monday, 0, 0)
	tk := &task.Task{ID: "due-mon", Rank: rank(1), DurationMinutes: 60, DueDate: &due, Status: task.StatusTodo}

	assignments, _ := Assign([]*task.Task{tk}, []*task.Task{blocker}, slots, 15)

	require.Len(t, assignments, 1)
	assert.Equal(t, at(monday, 12, 0), assignments[0].Start)
}

func TestAssign_PastDueDateStillScheduled(t *testing.T) {
	now := at(monday, 9, 0)
	slots := testCalendar(1).Generate(now)

	due := at(monday.AddDate(0, 0, -7), 0, 0)
	tk := &task.Task{ID: "overdue", Rank: rank(1), DurationMinutes: 30, DueDate: &due, Status: task.StatusTodo}

	assignments, unplaced := Assign([]*task.Task{tk}, nil, slots, 15)

	require.Empty(t, unplaced)
	require.Len(t, assignments, 1)
	assert.Equal(t, at(monday, 9, 0), assignments[0].Start)
}

func TestAssign_UnplacedWhenNothingFits(t *testing.T) {
	now := at(monday, 9, 0)
	slots := testCalendar(2).Generate(now)

	tk := &task.Task{ID: "huge", Rank: rank(1), DurationMinutes: 600, Status: task.StatusTodo}
	assignments, unplaced := Assign([]*task.Task{tk}, nil, slots, 15)

	assert.Empty(t, assignments)
	require.Len(t, unplaced, 1)
	assert.Equal(t, "huge", unplaced[0].Task.ID)
	assert.Equal(t, "no contiguous slots fit", unplaced[0].Reason)
}

func TestAssign_NoDurationIsUnplaced(t *testing.T) {
	now := at(monday, 9, 0)
	slots := testCalendar(1).Generate(now)

	tk := &task.Task{ID: "zero", Rank: rank(1), Status: task.StatusTodo}
	assignments, unplaced := Assign([]*task.Task{tk}, nil, slots, 15)

	assert.Empty(t, assignments)
	require.Len(t, unplaced, 1)
	assert.Equal(t, "no duration", unplaced[0].Reason)
}

func TestAssign_StaleSlotNotTreatedAsOccupied(t *testing.T) {
	// Task Z was scheduled yesterday and is still in progress: it gets a
	// fresh placement and its stale range blocks nothing.
	now := at(monday, 9, 0)
	slots := testCalendar(1).Generate(now)

	z := &task.Task{
		ID:              "z",
		Rank:            rank(1),
		DurationMinutes: 60,
		Status:          task.StatusInProgress,
		ScheduledStart:  timeAt(at(monday.AddDate(0, 0, -1), 8, 0)),
		ScheduledEnd:    timeAt(at(monday.AddDate(0, 0, -1), 9, 0)),
	}
	needs, placed := Partition([]*task.Task{z}, now)
	require.Len(t, needs, 1)
	require.Empty(t, placed)

	assignments, _ := Assign(needs, placed, slots, 15)
	require.Len(t, assignments, 1)
	assert.Equal(t, at(monday, 9, 0), assignments[0].Start)
	assert.True(t, assignments[0].Start.After(*z.ScheduledStart))
}

func TestAssign_Deterministic(t *testing.T) {
	now := at(monday, 9, 0)
	mkTasks := func() []*task.Task {
		return []*task.Task{
			{ID: "a", Rank: rank(2), DurationMinutes: 45, Status: task.StatusTodo},
			{ID: "b", Rank: rank(1), DurationMinutes: 90, Status: task.StatusTodo},
			{ID: "c", Rank: rank(2), DurationMinutes: 30, Status: task.StatusTodo},
		}
	}
	cal := testCalendar(3)

	first, _ := Assign(mkTasks(), nil, cal.Generate(now), 15)
	second, _ := Assign(mkTasks(), nil, cal.Generate(now), 15)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Task.ID, second[i].Task.ID)
		assert.True(t, first[i].Start.Equal(second[i].Start))
		assert.True(t, first[i].End.Equal(second[i].End))
	}
}
