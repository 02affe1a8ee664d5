package constants

// TaskStatus is the lifecycle state of one (document, variant) benchmark task.
type TaskStatus string

const (
	TaskStatusDiscovered TaskStatus = "DISCOVERED"
	TaskStatusQueued     TaskStatus = "QUEUED"
	TaskStatusRunning    TaskStatus = "RUNNING"
	TaskStatusScored     TaskStatus = "SCORED"
	TaskStatusPersisted  TaskStatus = "PERSISTED" // terminal
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusDiscovered: {TaskStatusQueued},
	TaskStatusQueued:     {TaskStatusRunning},
	// a failed run returns the task to QUEUED; it is retried by the next pass
	TaskStatusRunning: {TaskStatusScored, TaskStatusQueued},
	TaskStatusScored:  {TaskStatusPersisted},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s is the final state of a task.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusPersisted
}

// RunStatus is stored in the run ledger.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusAborted   RunStatus = "ABORTED"
)
