package scheduler

import (
	"sort"
	"time"

	"github.com/me/slaq/pkg/model"
)

// Less is the total order used to pick the next task from a candidate
// set. Most-preferred first:
//
//  1. Any breached task before any non-breached task, regardless of
//     priority.
//  2. Ascending signed remaining time (soonest deadline first; for
//     breached tasks this means longest overdue first).
//  3. Higher priority precedence (lower numeric value).
//  4. Earlier created_at (FIFO).
//
// Breach status dominating priority is the scheduler's core
// fairness-to-deadlines guarantee: a low-priority breached task is
// serviced before a high-priority task that still has headroom.
func Less(a, b *model.PipelineTask, now time.Time) bool {
	ab, bb := a.Breached(now), b.Breached(now)
	if ab != bb {
		return ab
	}
	ra, rb := a.Remaining(now), b.Remaining(now)
	if ra != rb {
		return ra < rb
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// SortByUrgency orders tasks in claim order as of now.
func SortByUrgency(tasks []*model.PipelineTask, now time.Time) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return Less(tasks[i], tasks[j], now)
	})
}
