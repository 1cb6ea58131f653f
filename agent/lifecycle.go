package agent

import "context"

// Lifecycle acquires and releases the resources an agent needs.
type Lifecycle interface {
	// Setup runs on the first Initialize.
	Setup(ctx context.Context) error

	// Teardown runs once on Cleanup, if Setup was attempted.
	Teardown(ctx context.Context) error
}

// Resetter is an optional extension of Lifecycle. When present, Reset is
// used instead of Setup to re-initialize an agent from error status.
type Resetter interface {
	Reset(ctx context.Context) error
}

// LifecycleFuncs adapts plain functions to Lifecycle and Resetter.
// Nil functions are no-ops; a nil ResetFn falls back to SetupFn.
type LifecycleFuncs struct {
	SetupFn    func(ctx context.Context) error
	TeardownFn func(ctx context.Context) error
	ResetFn    func(ctx context.Context) error
}

// Setup calls SetupFn.
func (l LifecycleFuncs) Setup(ctx context.Context) error {
	if l.SetupFn == nil {
		return nil
	}
	return l.SetupFn(ctx)
}

// Teardown calls TeardownFn.
func (l LifecycleFuncs) Teardown(ctx context.Context) error {
	if l.TeardownFn == nil {
		return nil
	}
	return l.TeardownFn(ctx)
}

// Reset calls ResetFn, or SetupFn when no reset is given.
func (l LifecycleFuncs) Reset(ctx context.Context) error {
	if l.ResetFn == nil {
		return l.Setup(ctx)
	}
	return l.ResetFn(ctx)
}
