package scheduler

import "time"

// Deadline boost bands. The boost is a pure function of time-to-deadline, so
// recomputing twice at the same instant yields identical priorities.
const (
	urgentWindow   = time.Hour
	urgentBoost    = 10
	approachWindow = 4 * time.Hour
	approachBoost  = 5
)

// Starvation aging: one point per hour spent waiting, capped so an old task
// can rise past peers of similar priority but never outrank a genuinely
// urgent deadline.
const (
	agingStep = time.Hour
	agingCap  = 5
)

// deadlineBoost returns the priority boost for a task whose deadline is the
// given distance away at now. Past-due deadlines get the maximum boost.
func deadlineBoost(now time.Time, deadline *time.Time) int {
	if deadline == nil {
		return 0
	}
	until := deadline.Sub(now)
	switch {
	case until < urgentWindow:
		return urgentBoost
	case until < approachWindow:
		return approachBoost
	default:
		return 0
	}
}

// agingBoost returns the starvation boost for a task registered at createdAt.
func agingBoost(now, createdAt time.Time) int {
	if createdAt.IsZero() {
		return 0
	}
	waited := int(now.Sub(createdAt) / agingStep)
	if waited < 0 {
		return 0
	}
	if waited > agingCap {
		return agingCap
	}
	return waited
}

// recomputePriority refreshes CurrentPriority from the initial priority, the
// deadline boost, and the aging boost. Both boosts are monotonically
// non-decreasing over time, and the computation is idempotent for a fixed now.
func recomputePriority(task *Task, now time.Time) {
	task.CurrentPriority = task.InitialPriority + deadlineBoost(now, task.Deadline) + agingBoost(now, task.CreatedAt)
}
