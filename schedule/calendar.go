// Package schedule implements the scheduling engine: slot generation,
// drift detection, priority-ordered greedy assignment, write-back, and
// the cycle runner that ties them together.
package schedule

import (
	"time"
)

// Slot is an atomic fixed-width interval within a work day. Occupied is
// mutated only during a single assignment pass and never persisted.
type Slot struct {
	Start    time.Time
	End      time.Time
	Occupied bool
}

// Calendar generates the ordered sequence of schedulable slots for a
// planning horizon. It is a pure function of calendar time: identical
// inputs always yield an identical sequence.
type Calendar struct {
	WorkStartHour int
	WorkEndHour   int
	SlotMinutes   int
	HorizonDays   int
	Location      *time.Location
	Workdays      map[time.Weekday]bool
}

// Generate walks forward day by day from now for HorizonDays calendar
// days and emits every slot within work hours on a workday, skipping
// slots that start before now. All boundaries are computed in the
// calendar's location so DST transitions do not shift them mid-cycle.
// A work-day length that is not a multiple of SlotMinutes leaves a
// trailing partial slot, which is dropped.
func (c Calendar) Generate(now time.Time) []Slot {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	days := make([]time.Time, 0, c.HorizonDays)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	for i := 0; i < c.HorizonDays; i++ {
		if c.workday(day.Weekday()) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	step := time.Duration(c.SlotMinutes) * time.Minute
	var slots []Slot
	for _, d := range days {
		start := time.Date(d.Year(), d.Month(), d.Day(), c.WorkStartHour, 0, 0, 0, loc)
		dayEnd := time.Date(d.Year(), d.Month(), d.Day(), c.WorkEndHour, 0, 0, 0, loc)
		for cur := start; !cur.Add(step).After(dayEnd); cur = cur.Add(step) {
			if cur.Before(now) {
				continue
			}
			slots = append(slots, Slot{Start: cur, End: cur.Add(step)})
		}
	}
	return slots
}

func (c Calendar) workday(wd time.Weekday) bool {
	if c.Workdays == nil {
		return wd >= time.Monday && wd <= time.Friday
	}
	return c.Workdays[wd]
}

// SlotsNeeded converts a task duration to a slot count, rounding up. A
// non-positive duration needs no slots.
func (c Calendar) SlotsNeeded(durationMinutes int) int {
	if durationMinutes <= 0 {
		return 0
	}
	return (durationMinutes + c.SlotMinutes - 1) / c.SlotMinutes
}
