package agent

import "fmt"

// Status is the lifecycle state of an agent.
type Status int32

const (
	// StatusUninitialized is the state of a new agent before Initialize.
	StatusUninitialized Status = iota

	// StatusIdle means the agent is ready to accept a task.
	StatusIdle

	// StatusBusy means the agent is executing exactly one task.
	StatusBusy

	// StatusError means the agent is quarantined and must be re-initialized.
	StatusError

	// StatusDisposed means the agent was cleaned up. Terminal.
	StatusDisposed
)

var statusNames = [...]string{
	StatusUninitialized: "uninitialized",
	StatusIdle:          "idle",
	StatusBusy:          "busy",
	StatusError:         "error",
	StatusDisposed:      "disposed",
}

// transitions is the complete table of allowed status changes.
var transitions = map[Status][]Status{
	StatusUninitialized: {StatusIdle, StatusError, StatusDisposed},
	StatusIdle:          {StatusBusy, StatusError, StatusDisposed},
	StatusBusy:          {StatusIdle, StatusError},
	StatusError:         {StatusIdle, StatusError, StatusDisposed},
	StatusDisposed:      {},
}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// ParseStatus converts a status name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown agent status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Accepting reports whether an agent in this status can take a task.
func (s Status) Accepting() bool {
	return s == StatusIdle
}
