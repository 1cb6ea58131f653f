package task

// Status represents the current state of a task.
type Status string

const (
	// StatusPending indicates the task was created and has not run.
	StatusPending Status = "pending"

	// StatusRunning indicates an agent accepted the task and is executing it.
	StatusRunning Status = "running"

	// StatusCompleted indicates the task finished and carries a result.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task finished with an error attached.
	StatusFailed Status = "failed"
)

// transitions lists the allowed next states for each state.
var transitions = map[Status][]Status{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
