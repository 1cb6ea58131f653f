package shutdown

import (
	"context"
	"errors"
	"time"

	"github.com/vinayprograms/agentcore/logging"
)

var (
	// ErrAlreadyShutdown is returned by a Shutdown call that raced an
	// in-flight shutdown.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates the deadline passed before every phase ran.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed.
	ErrHandlerFailed = errors.New("one or more handlers failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Phases used by a pool process. Lower phases run first.
const (
	// PhaseStopIntake stops heartbeats and new submissions.
	PhaseStopIntake = 10

	// PhaseDrain waits for running tasks and disposes agents.
	PhaseDrain = 20

	// PhaseFlush flushes the journal index and exported spans.
	PhaseFlush = 30

	// PhaseClose closes the bus and the state store.
	PhaseClose = 40
)

// Handler is implemented by components torn down on shutdown.
type Handler interface {
	// OnShutdown releases the component. ctx is cancelled at the deadline.
	OnShutdown(ctx context.Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context) error

// OnShutdown implements Handler.
func (f HandlerFunc) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// HandlerResult is the outcome of one handler.
type HandlerResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error

	// Skipped is set for handlers never called because the deadline
	// passed or an earlier phase failed with ContinueOnError unset.
	Skipped bool
}

// Result is the outcome of a whole shutdown.
type Result struct {
	TotalDuration time.Duration
	Results       []HandlerResult

	// Err is nil when every handler ran and succeeded.
	Err error
}

// Failed reports whether the shutdown was incomplete.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// FailedHandlers returns the names of handlers that returned an error.
func (r *Result) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

// SkippedHandlers returns the names of handlers that never ran.
func (r *Result) SkippedHandlers() []string {
	var skipped []string
	for _, hr := range r.Results {
		if hr.Skipped {
			skipped = append(skipped, hr.Name)
		}
	}
	return skipped
}

// Config configures a Coordinator.
type Config struct {
	// Timeout bounds shutdowns started by a signal or ShutdownWithTimeout(0).
	// Default: 30 seconds
	Timeout time.Duration

	// DefaultPhase is assigned by Register.
	// Default: 100
	DefaultPhase int

	// ContinueOnError runs later phases after a handler fails.
	ContinueOnError bool

	// Logger receives one line per handler and one for the whole shutdown.
	Logger *logging.Logger

	// OnProgress is called as each handler completes.
	OnProgress func(result HandlerResult)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout < 0 || c.DefaultPhase < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		DefaultPhase:    100,
		ContinueOnError: true,
	}
}

type registration struct {
	name    string
	handler Handler
	phase   int
}
