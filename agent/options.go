package agent

import (
	"github.com/vinayprograms/agentcore/logging"
	"github.com/vinayprograms/agentcore/telemetry"
)

// StatusListener observes status transitions. Listeners run synchronously
// on the goroutine that made the transition and must not call Initialize
// or Cleanup on the same agent. A listener that panics is logged and
// skipped.
type StatusListener func(agentID string, from, to Status)

// Option configures an Agent.
type Option func(*Agent)

// WithHandlers sets the handler registry.
func WithHandlers(r *Registry) Option {
	return func(a *Agent) {
		a.handlers = r
	}
}

// WithLifecycle sets the setup/teardown hooks.
func WithLifecycle(l Lifecycle) Option {
	return func(a *Agent) {
		a.lifecycle = l
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the tracer used for task and lifecycle spans. A nil
// tracer is ignored.
func WithTracer(t *telemetry.Tracer) Option {
	return func(a *Agent) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithMaxConsecutiveFailures quarantines the agent after n task failures
// in a row. Zero disables the threshold.
func WithMaxConsecutiveFailures(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.maxFailures = int32(n)
		}
	}
}

// WithStatusListener registers a listener for status transitions.
func WithStatusListener(fn StatusListener) Option {
	return func(a *Agent) {
		if fn != nil {
			a.listeners = append(a.listeners, fn)
		}
	}
}
