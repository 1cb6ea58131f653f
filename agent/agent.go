package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/agentcore/errors"
	"github.com/vinayprograms/agentcore/logging"
	"github.com/vinayprograms/agentcore/task"
	"github.com/vinayprograms/agentcore/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Agent executes tasks one at a time and owns its own status.
//
// Every status change is a compare-and-swap validated against the
// transition table, so the idle → busy swap in ExecuteTask is the single
// point that serializes concurrent callers. Initialize and Cleanup are
// additionally serialized with each other by a lifecycle mutex.
type Agent struct {
	cfg         Config
	status      atomic.Int32
	failures    atomic.Int32
	maxFailures int32

	handlers  *Registry
	lifecycle Lifecycle
	logger    *logging.Logger
	tracer    *telemetry.Tracer

	listenersMu sync.RWMutex
	listeners   []StatusListener

	lifeMu         sync.Mutex
	setupAttempted bool

	errMu   sync.RWMutex
	lastErr error
}

// New creates an uninitialized agent.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:    cfg.clone(),
		logger: logging.New(),
		tracer: telemetry.GetTracer(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.handlers == nil {
		a.handlers = NewRegistry()
	}
	a.logger = a.logger.WithComponent("agent").WithFields(map[string]interface{}{"agent": cfg.ID})
	a.status.Store(int32(StatusUninitialized))
	return a, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string {
	return a.cfg.ID
}

// Config returns a copy of the agent config. Capabilities include every
// task type the agent has a handler for.
func (a *Agent) Config() Config {
	cfg := a.cfg.clone()
	for _, t := range a.handlers.Types() {
		if !cfg.HasCapability(t) {
			cfg.Capabilities = append(cfg.Capabilities, t)
		}
	}
	return cfg
}

// Handlers returns the handler registry.
func (a *Agent) Handlers() *Registry {
	return a.handlers
}

// Status returns a snapshot of the current status. It never blocks.
func (a *Agent) Status() Status {
	return Status(a.status.Load())
}

// ConsecutiveFailures returns the number of task failures since the last
// success or initialization.
func (a *Agent) ConsecutiveFailures() int {
	return int(a.failures.Load())
}

// LastError returns the failure that put the agent in error status, or nil.
func (a *Agent) LastError() error {
	a.errMu.RLock()
	defer a.errMu.RUnlock()
	return a.lastErr
}

// OnStatusChange registers a listener after construction.
func (a *Agent) OnStatusChange(fn StatusListener) {
	if fn == nil {
		return
	}
	a.listenersMu.Lock()
	a.listeners = append(a.listeners, fn)
	a.listenersMu.Unlock()
}

// Initialize prepares the agent to accept tasks.
//
// An idle agent is left alone. From uninitialized it runs Setup; from error
// it runs Reset when the lifecycle provides one, Setup otherwise. On
// success the agent is idle; on failure it is in error status and a
// lifecycle error is returned.
func (a *Agent) Initialize(ctx context.Context) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	from := a.Status()
	switch from {
	case StatusIdle:
		return nil
	case StatusBusy:
		return a.contract(errors.ErrCodeAgentBusy, "cannot initialize while executing a task")
	case StatusDisposed:
		return a.contract(errors.ErrCodeAgentDisposed, "cannot initialize a disposed agent")
	}

	start := time.Now()
	ctx, span := a.tracer.StartLifecycle(ctx, a.cfg.ID, "initialize")

	a.setupAttempted = true
	var hookErr error
	if from == StatusError {
		hookErr = a.runHook(ctx, "reset", a.reset)
	} else {
		hookErr = a.runHook(ctx, "setup", a.setup)
	}

	if hookErr != nil {
		err := errors.Lifecycle(errors.ErrCodeSetupFailed,
			fmt.Sprintf("agent %s setup failed", a.cfg.ID), hookErr, errors.WithAgentID(a.cfg.ID))
		a.setLastErr(err)
		a.transition(from, StatusError)
		a.logger.Lifecycle(a.cfg.ID, "initialize", time.Since(start), err)
		a.tracer.EndLifecycle(span, a.Status().String(), err)
		return err
	}

	a.failures.Store(0)
	a.setLastErr(nil)
	if !a.transition(from, StatusIdle) {
		err := a.integrity(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("status changed during initialize (now %s)", a.Status()))
		a.tracer.EndLifecycle(span, a.Status().String(), err)
		return err
	}
	a.logger.Lifecycle(a.cfg.ID, "initialize", time.Since(start), nil)
	a.tracer.EndLifecycle(span, StatusIdle.String(), nil)
	return nil
}

// Cleanup releases the agent's resources. It is idempotent. A busy agent
// is rejected with AGENT_BUSY rather than waited on. After Cleanup the
// agent is disposed even if Teardown fails.
func (a *Agent) Cleanup(ctx context.Context) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	for {
		from := a.Status()
		if from == StatusDisposed {
			return nil
		}
		if from == StatusBusy {
			return a.contract(errors.ErrCodeAgentBusy, "cannot clean up while executing a task")
		}
		if a.transition(from, StatusDisposed) {
			break
		}
	}

	if !a.setupAttempted || a.lifecycle == nil {
		a.logger.Lifecycle(a.cfg.ID, "cleanup", 0, nil)
		return nil
	}

	start := time.Now()
	ctx, span := a.tracer.StartLifecycle(ctx, a.cfg.ID, "cleanup")
	if hookErr := a.runHook(ctx, "teardown", a.lifecycle.Teardown); hookErr != nil {
		err := errors.Lifecycle(errors.ErrCodeTeardownFailed,
			fmt.Sprintf("agent %s teardown failed", a.cfg.ID), hookErr, errors.WithAgentID(a.cfg.ID))
		a.logger.Lifecycle(a.cfg.ID, "cleanup", time.Since(start), err)
		a.tracer.EndLifecycle(span, StatusDisposed.String(), err)
		return err
	}
	a.logger.Lifecycle(a.cfg.ID, "cleanup", time.Since(start), nil)
	a.tracer.EndLifecycle(span, StatusDisposed.String(), nil)
	return nil
}

// ExecuteTask runs tc on this agent.
//
// Contract violations (nil or non-pending task, agent not idle) are
// returned without touching the task or the agent. Otherwise the task is
// always terminal on return and the agent is idle or, after an integrity
// failure, in error status. Task-scoped failures are recorded on the task
// and return a nil error; integrity failures are also returned. A panic
// outside the handler after the agent turned busy quarantines the agent.
func (a *Agent) ExecuteTask(ctx context.Context, tc *task.Context) (out *task.Context, err error) {
	if tc == nil {
		return nil, a.contract(errors.ErrCodeInvalidTask, "task is nil")
	}
	if s := tc.Status(); s != task.StatusPending {
		return tc, a.contract(errors.ErrCodeTaskNotPending,
			fmt.Sprintf("task %s is %s", tc.ID(), s), errors.WithTaskID(tc.ID()))
	}
	if err := a.acquire(); err != nil {
		return tc, err
	}

	var span trace.Span
	defer func() {
		if r := recover(); r != nil {
			out, err = tc, a.abandon(tc, r)
			if span != nil {
				a.tracer.EndTask(span, tc, err)
			}
		}
	}()

	if err := tc.Start(); err != nil {
		// Another caller started the task between the check and here.
		a.release()
		return tc, err
	}

	start := time.Now()
	ctx, span = a.tracer.StartTask(ctx, a.cfg.ID, tc)
	a.logger.TaskStart(a.cfg.ID, tc.ID(), tc.Type())

	result, runErr := a.invoke(ctx, tc)
	if runErr == nil {
		if err := tc.Complete(result); err != nil {
			runErr = errors.Wrap(err, "record task completion", errors.WithCategory(errors.CategoryIntegrity))
		} else {
			a.failures.Store(0)
			err := a.release()
			a.logger.TaskComplete(a.cfg.ID, tc.ID(), time.Since(start))
			a.tracer.EndTask(span, tc, err)
			return tc, err
		}
	}

	classified := a.classify(runErr, tc.ID())
	if err := tc.Fail(classified); err != nil {
		classified = errors.Wrap(err, "record task failure", errors.WithCategory(errors.CategoryIntegrity))
	}
	a.logger.TaskFailed(a.cfg.ID, tc.ID(), time.Since(start), classified)

	outcome := a.recordFailure(classified)
	if errors.IsIntegrity(outcome) {
		a.tracer.EndTask(span, tc, outcome)
		return tc, outcome
	}
	err = a.release()
	a.tracer.EndTask(span, tc, err)
	return tc, err
}

// HandleError is the single recovery path for failures reported against
// this agent. It classifies err, counts task-scoped failures and
// quarantines the agent on integrity failures or when the consecutive
// failure threshold is reached. It returns the classified error, which is
// an integrity error whenever the agent was quarantined.
func (a *Agent) HandleError(err error) error {
	if err == nil {
		return nil
	}
	if a.Status() == StatusDisposed {
		return a.contract(errors.ErrCodeAgentDisposed, "agent is disposed")
	}
	return a.recordFailure(a.classify(err, ""))
}

// classify maps any error onto the taxonomy. Errors already in the taxonomy
// keep their category; context errors become TIMEOUT / CANCELED; anything
// else is a task-scoped TASK_FAILED.
func (a *Agent) classify(err error, taskID string) *errors.Error {
	if e, ok := errors.As(err); ok {
		return e
	}
	opts := []errors.Option{errors.WithAgentID(a.cfg.ID)}
	if taskID != "" {
		opts = append(opts, errors.WithTaskID(taskID))
	}
	wrapped := errors.Wrap(err, "task execution failed", opts...)
	if wrapped.Code() == errors.ErrCodeInternal {
		return errors.WrapWithCode(err, errors.ErrCodeTaskFailed, "task execution failed", opts...)
	}
	return wrapped
}

func (a *Agent) recordFailure(err *errors.Error) error {
	switch err.Category() {
	case errors.CategoryContract:
		return err
	case errors.CategoryIntegrity:
		a.quarantine(err)
		return err
	}

	n := a.failures.Add(1)
	if a.maxFailures > 0 && n >= a.maxFailures {
		escalated := errors.New(errors.ErrCodeFailureThreshold,
			fmt.Sprintf("agent %s reached %d consecutive task failures", a.cfg.ID, n),
			errors.WithAgentID(a.cfg.ID),
			errors.WithCause(err),
			errors.WithMetadata("threshold", fmt.Sprint(a.maxFailures)),
		)
		a.quarantine(escalated)
		return escalated
	}
	return err
}

// abandon settles tc and quarantines the agent after a panic in the
// bookkeeping around a handler call.
func (a *Agent) abandon(tc *task.Context, recovered interface{}) error {
	err := errors.Integrity(fmt.Sprintf("agent %s: task execution aborted: %v", a.cfg.ID, recovered),
		errors.WithAgentID(a.cfg.ID),
		errors.WithTaskID(tc.ID()),
		errors.WithCause(errors.RecoverPanic(recovered)),
	)
	if tc.Status() == task.StatusPending {
		_ = tc.Start()
	}
	if !tc.Status().IsTerminal() {
		_ = tc.Fail(err)
	}
	a.quarantine(err)
	return err
}

// quarantine moves an idle or busy agent to error status.
func (a *Agent) quarantine(err error) {
	a.setLastErr(err)
	for {
		from := a.Status()
		if from != StatusIdle && from != StatusBusy {
			return
		}
		if a.transition(from, StatusError) {
			a.logger.Quarantined(a.cfg.ID, err)
			return
		}
	}
}

func (a *Agent) invoke(ctx context.Context, tc *task.Context) (result any, err error) {
	entry, ok := a.handlers.Lookup(tc.Type())
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported,
			fmt.Sprintf("no handler for task type %q", tc.Type()), errors.WithTaskID(tc.ID()))
	}

	params, err := entry.Schema.Validate(tc.Params())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.RecoverPanic(r, errors.WithTaskID(tc.ID()), errors.WithAgentID(a.cfg.ID))
		}
	}()

	return entry.Handler.Handle(ctx, Request{
		TaskID: tc.ID(),
		Type:   tc.Type(),
		Params: params,
	})
}

// acquire performs the idle → busy swap or reports why it cannot.
func (a *Agent) acquire() error {
	for {
		switch from := a.Status(); from {
		case StatusIdle:
			if a.transition(StatusIdle, StatusBusy) {
				return nil
			}
		case StatusUninitialized:
			return a.contract(errors.ErrCodeNotInitialized, "agent is not initialized")
		case StatusBusy:
			return a.contract(errors.ErrCodeAgentBusy, "agent is executing another task")
		case StatusError:
			return a.contract(errors.ErrCodeAgentFaulted, "agent is in error status and must be re-initialized")
		default:
			return a.contract(errors.ErrCodeAgentDisposed, "agent is disposed")
		}
	}
}

// release returns a busy agent to idle. If the agent was quarantined while
// busy, it stays in error and the quarantine cause is returned.
func (a *Agent) release() error {
	if a.transition(StatusBusy, StatusIdle) {
		return nil
	}
	if a.Status() == StatusError {
		if err := a.LastError(); err != nil {
			return err
		}
		return a.integrity(errors.ErrCodeIntegrity, "agent quarantined during execution")
	}
	return nil
}

// transition swaps from → to if the table allows it and the current status
// is still from. Listeners are notified after a successful swap.
func (a *Agent) transition(from, to Status) bool {
	if !from.CanTransitionTo(to) {
		return false
	}
	if !a.status.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if from != to {
		a.logger.StatusChange(a.cfg.ID, from.String(), to.String())
	}

	a.listenersMu.RLock()
	listeners := a.listeners
	a.listenersMu.RUnlock()
	for _, fn := range listeners {
		a.notify(fn, from, to)
	}
	return true
}

// notify runs one listener. A panicking listener is logged and skipped;
// the transition it observed stands.
func (a *Agent) notify(fn StatusListener, from, to Status) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("status listener panicked", map[string]interface{}{
				"from":  from.String(),
				"to":    to.String(),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	fn(a.cfg.ID, from, to)
}

func (a *Agent) setup(ctx context.Context) error {
	if a.lifecycle == nil {
		return nil
	}
	return a.lifecycle.Setup(ctx)
}

func (a *Agent) reset(ctx context.Context) error {
	if r, ok := a.lifecycle.(Resetter); ok {
		return r.Reset(ctx)
	}
	return a.setup(ctx)
}

func (a *Agent) runHook(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r, errors.WithAgentID(a.cfg.ID), errors.WithMetadata("hook", name))
		}
	}()
	return fn(ctx)
}

func (a *Agent) setLastErr(err error) {
	a.errMu.Lock()
	a.lastErr = err
	a.errMu.Unlock()
}

func (a *Agent) contract(code errors.ErrorCode, msg string, opts ...errors.Option) error {
	opts = append(opts, errors.WithAgentID(a.cfg.ID))
	return errors.Contract(code, fmt.Sprintf("agent %s: %s", a.cfg.ID, msg), opts...)
}

func (a *Agent) integrity(code errors.ErrorCode, msg string) error {
	return errors.New(code, fmt.Sprintf("agent %s: %s", a.cfg.ID, msg),
		errors.WithAgentID(a.cfg.ID), errors.WithCategory(errors.CategoryIntegrity))
}
