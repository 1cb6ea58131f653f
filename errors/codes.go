package errors

// ErrorCategory classifies errors by who is at fault and what state the
// agent is left in.
type ErrorCategory string

// Error categories.
const (
	// CategoryContract indicates the caller broke a precondition.
	// The task and the agent are left untouched.
	// Examples: task not pending, agent busy, agent disposed.
	CategoryContract ErrorCategory = "contract"

	// CategoryTask indicates the task's own behavior failed.
	// The task is marked failed and the agent stays usable.
	// Examples: bad parameters, handler returned an error, handler panicked.
	CategoryTask ErrorCategory = "task"

	// CategoryIntegrity indicates the agent itself can no longer be trusted.
	// The agent is quarantined until it is re-initialized.
	// Examples: bookkeeping failure, failure threshold exceeded.
	CategoryIntegrity ErrorCategory = "integrity"

	// CategoryLifecycle indicates setup or teardown of agent resources failed.
	CategoryLifecycle ErrorCategory = "lifecycle"

	// CategoryTransient indicates a temporary infrastructure failure outside
	// the agent (store, bus, provider).
	CategoryTransient ErrorCategory = "transient"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if a fresh attempt of the same work may succeed.
// A failed task is never resubmitted as-is; retryable here means a new task
// with the same inputs may be produced by the caller.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTask, CategoryTransient:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes.
const (
	// Contract violations
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"  // Agent was never initialized
	ErrCodeAgentBusy      ErrorCode = "AGENT_BUSY"       // Agent is executing another task
	ErrCodeAgentFaulted   ErrorCode = "AGENT_FAULTED"    // Agent is quarantined in error status
	ErrCodeAgentDisposed  ErrorCode = "AGENT_DISPOSED"   // Agent was cleaned up
	ErrCodeTaskNotPending ErrorCode = "TASK_NOT_PENDING" // Task already ran or is running
	ErrCodeInvalidTask    ErrorCode = "INVALID_TASK"     // Task is nil or malformed
	ErrCodeDuplicateAgent ErrorCode = "DUPLICATE_AGENT"  // Agent ID already in the pool
	ErrCodePoolClosed     ErrorCode = "POOL_CLOSED"      // Pool is shutting down

	// Task-execution failures
	ErrCodeTaskFailed   ErrorCode = "TASK_FAILED"   // Task behavior returned an error
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT" // Parameters failed schema validation
	ErrCodeUnsupported  ErrorCode = "UNSUPPORTED"   // No handler for the task type
	ErrCodePanic        ErrorCode = "PANIC"         // Recovered from panic in task behavior
	ErrCodeTimeout      ErrorCode = "TIMEOUT"       // Task context deadline exceeded
	ErrCodeCanceled     ErrorCode = "CANCELED"      // Task context canceled

	// Agent-integrity failures
	ErrCodeIntegrity         ErrorCode = "INTEGRITY"          // Agent internal state compromised
	ErrCodeFailureThreshold  ErrorCode = "FAILURE_THRESHOLD"  // Too many consecutive task failures
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION" // Status transition rejected by the table

	// Resource-lifecycle failures
	ErrCodeSetupFailed    ErrorCode = "SETUP_FAILED"    // initialize could not acquire resources
	ErrCodeTeardownFailed ErrorCode = "TEARDOWN_FAILED" // cleanup could not release resources

	// Infrastructure
	ErrCodeNoCapacity  ErrorCode = "NO_CAPACITY" // No idle agent can take the task
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Backing service temporarily unavailable
	ErrCodeInternal    ErrorCode = "INTERNAL"    // Unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeNotInitialized, ErrCodeAgentBusy, ErrCodeAgentFaulted,
		ErrCodeAgentDisposed, ErrCodeTaskNotPending, ErrCodeInvalidTask,
		ErrCodeDuplicateAgent, ErrCodePoolClosed:
		return CategoryContract

	case ErrCodeTaskFailed, ErrCodeInvalidInput, ErrCodeUnsupported,
		ErrCodePanic, ErrCodeTimeout, ErrCodeCanceled:
		return CategoryTask

	case ErrCodeIntegrity, ErrCodeFailureThreshold, ErrCodeInvalidTransition:
		return CategoryIntegrity

	case ErrCodeSetupFailed, ErrCodeTeardownFailed:
		return CategoryLifecycle

	case ErrCodeNoCapacity, ErrCodeUnavailable:
		return CategoryTransient

	default:
		return CategoryIntegrity
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeNotInitialized:    "agent not initialized",
	ErrCodeAgentBusy:         "agent is busy",
	ErrCodeAgentFaulted:      "agent is faulted",
	ErrCodeAgentDisposed:     "agent is disposed",
	ErrCodeTaskNotPending:    "task is not pending",
	ErrCodeInvalidTask:       "invalid task",
	ErrCodeDuplicateAgent:    "duplicate agent",
	ErrCodePoolClosed:        "pool is closed",
	ErrCodeTaskFailed:        "task execution failed",
	ErrCodeInvalidInput:      "invalid input provided",
	ErrCodeUnsupported:       "task type not supported",
	ErrCodePanic:             "recovered from panic",
	ErrCodeTimeout:           "operation timed out",
	ErrCodeCanceled:          "operation canceled",
	ErrCodeIntegrity:         "agent integrity compromised",
	ErrCodeFailureThreshold:  "consecutive failure threshold reached",
	ErrCodeInvalidTransition: "invalid status transition",
	ErrCodeSetupFailed:       "agent setup failed",
	ErrCodeTeardownFailed:    "agent teardown failed",
	ErrCodeNoCapacity:        "no idle agent available",
	ErrCodeUnavailable:       "service temporarily unavailable",
	ErrCodeInternal:          "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
