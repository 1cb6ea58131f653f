package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already an *Error, its code, category and identity are kept.
// Context errors map to TIMEOUT / CANCELED; anything else becomes INTERNAL.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var agentErr *Error
	if errors.As(err, &agentErr) {
		wrapped := &Error{
			code:      agentErr.code,
			category:  agentErr.category,
			message:   message,
			cause:     err,
			metadata:  agentErr.Metadata(),
			retryable: agentErr.retryable,
			timestamp: agentErr.timestamp,
			agentID:   agentErr.agentID,
			taskID:    agentErr.taskID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// As extracts the outermost *Error from an error chain.
func As(err error) (*Error, bool) {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr, true
	}
	return nil, false
}

// Is checks if the outermost *Error in the chain has the given code.
func Is(err error, code ErrorCode) bool {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.code == code
	}
	return false
}

// IsCategory checks if the outermost *Error in the chain has the category.
func IsCategory(err error, category ErrorCategory) bool {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.category == category
	}
	return false
}

// IsContract reports a caller precondition violation.
func IsContract(err error) bool {
	return IsCategory(err, CategoryContract)
}

// IsIntegrity reports a failure that quarantines the agent.
func IsIntegrity(err error) bool {
	return IsCategory(err, CategoryIntegrity)
}

// IsLifecycle reports a setup or teardown failure.
func IsLifecycle(err error) bool {
	return IsCategory(err, CategoryLifecycle)
}

// IsTransient reports a temporary infrastructure failure.
func IsTransient(err error) bool {
	return IsCategory(err, CategoryTransient)
}

// Code extracts the error code from an error, if available.
// Returns empty string if err carries no *Error.
func Code(err error) ErrorCode {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.code
	}
	return ""
}

// Category extracts the error category from an error, if available.
// Returns empty string if err carries no *Error.
func Category(err error) ErrorCategory {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.category
	}
	return ""
}

// GetMetadata extracts metadata from an error.
// Returns nil if err carries no *Error.
func GetMetadata(err error) map[string]string {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Metadata()
	}
	return nil
}

// Join combines multiple errors into a single error.
// If all errors are nil, returns nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// RecoverPanic converts a recovered panic value into a PANIC error.
func RecoverPanic(recovered interface{}, opts ...Option) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	opts = append([]Option{WithMetadata("panic_value", fmt.Sprintf("%T", recovered))}, opts...)
	return New(ErrCodePanic, message, opts...)
}
