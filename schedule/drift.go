package schedule

import (
	"time"

	"github.com/taskweave/taskweave/task"
)

// Partition splits candidate tasks into those that need a (new) placement
// and those already placed in the future.
//
// A task needs placement when it has never been scheduled, or when its
// scheduled start has elapsed while the task remains incomplete (a stale
// placement). Tasks scheduled strictly after now keep their placement and
// are untouched this cycle; their slots are still seeded as occupied by
// the assignment pass.
func Partition(tasks []*task.Task, now time.Time) (needsPlacement, alreadyPlaced []*task.Task) {
	for _, t := range tasks {
		switch {
		case t.ScheduledStart == nil:
			needsPlacement = append(needsPlacement, t)
		case t.ScheduledStart.After(now):
			alreadyPlaced = append(alreadyPlaced, t)
		case !t.Status.Terminal():
			// Stale: the assigned time passed without completion.
			needsPlacement = append(needsPlacement, t)
		}
	}
	return needsPlacement, alreadyPlaced
}
