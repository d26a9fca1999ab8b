package model

// TaskStatus represents the lifecycle status of a PipelineTask.
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
	StatusBlocked   TaskStatus = "blocked"
)

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the task is in a final, write-once status.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// ValidTransitions defines the allowed status transitions.
// queued → running (claim), running → succeeded/failed/queued (retry),
// blocked is reachable from queued or running and returns to queued,
// or to failed when the attempt budget was already spent while blocked.
var ValidTransitions = map[TaskStatus][]TaskStatus{
	StatusQueued:  {StatusRunning, StatusBlocked},
	StatusRunning: {StatusSucceeded, StatusFailed, StatusQueued, StatusBlocked},
	StatusBlocked: {StatusQueued, StatusFailed},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range ValidTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllStatuses lists every task status, in lifecycle order. Used by stats
// reporting so that zero counts still appear.
var AllStatuses = []TaskStatus{
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusBlocked,
}
