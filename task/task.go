package task

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/agentcore/errors"
)

// Context is a single unit of work and its execution record.
//
// Identity, type, parameters and creation time never change after New.
// Status, result, error and updatedAt change only through Start, Complete
// and Fail, which enforce the status transition table. A Context is safe
// for concurrent reads while an agent executes it.
type Context struct {
	mu        sync.RWMutex
	id        string
	typ       string
	params    Params
	status    Status
	result    any
	err       error
	createdAt time.Time
	updatedAt time.Time
	attempts  int
	now       func() time.Time
}

// Option configures a Context at creation.
type Option func(*Context)

// WithID sets an explicit task ID instead of a generated one.
func WithID(id string) Option {
	return func(c *Context) {
		c.id = id
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		c.now = now
	}
}

// New creates a pending task of the given type. The parameters are copied.
func New(typ string, params Params, opts ...Option) (*Context, error) {
	if typ == "" {
		return nil, errors.Contract(errors.ErrCodeInvalidTask, "task type is required")
	}
	c := &Context{
		typ:    typ,
		params: params.Clone(),
		status: StatusPending,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.New().String()
	}
	c.createdAt = c.now()
	c.updatedAt = c.createdAt
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(typ string, params Params, opts ...Option) *Context {
	c, err := New(typ, params, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ID returns the task identifier.
func (c *Context) ID() string { return c.id }

// Type returns the task type tag used for handler dispatch.
func (c *Context) Type() string { return c.typ }

// CreatedAt returns the creation time.
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// Params returns a deep copy of the task parameters.
func (c *Context) Params() Params {
	return c.params.Clone()
}

// Status returns the current status.
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Result returns the result. It is non-nil only for completed tasks whose
// handler produced a value.
func (c *Context) Result() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Err returns the failure attached to a failed task.
func (c *Context) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// UpdatedAt returns the time of the last status change.
func (c *Context) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Attempts returns how many times execution was started.
func (c *Context) Attempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

// Start moves the task from pending to running.
// A task that is not pending yields a TASK_NOT_PENDING contract error.
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPending {
		return errors.Contract(errors.ErrCodeTaskNotPending,
			fmt.Sprintf("task %s is %s", c.id, c.status), errors.WithTaskID(c.id))
	}
	c.attempts++
	c.setStatus(StatusRunning)
	return nil
}

// Complete moves a running task to completed with the given result.
func (c *Context) Complete(result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(StatusCompleted); err != nil {
		return err
	}
	c.result = result
	c.setStatus(StatusCompleted)
	return nil
}

// Fail moves a running task to failed with cause attached.
func (c *Context) Fail(cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(StatusFailed); err != nil {
		return err
	}
	if cause == nil {
		cause = errors.FromCode(errors.ErrCodeTaskFailed, errors.WithTaskID(c.id))
	}
	c.err = cause
	c.result = nil
	c.setStatus(StatusFailed)
	return nil
}

func (c *Context) check(next Status) error {
	if !c.status.CanTransitionTo(next) {
		return errors.New(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("task %s cannot move from %s to %s", c.id, c.status, next),
			errors.WithTaskID(c.id))
	}
	return nil
}

// setStatus records the transition. updatedAt always moves strictly forward,
// even when the clock has not advanced since the previous transition.
func (c *Context) setStatus(s Status) {
	c.status = s
	now := c.now()
	if !now.After(c.updatedAt) {
		now = c.updatedAt.Add(time.Nanosecond)
	}
	c.updatedAt = now
}

// Record is the serializable snapshot of a task.
type Record struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Params    Params        `json:"params,omitempty"`
	Status    Status        `json:"status"`
	Result    any           `json:"result,omitempty"`
	Error     *errors.Error `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Attempts  int           `json:"attempts"`
}

// Snapshot returns a consistent copy of the task state.
func (c *Context) Snapshot() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r := Record{
		ID:        c.id,
		Type:      c.typ,
		Params:    c.params.Clone(),
		Status:    c.status,
		Result:    c.result,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
		Attempts:  c.attempts,
	}
	if c.err != nil {
		if e, ok := errors.As(c.err); ok {
			r.Error = e
		} else {
			r.Error = errors.New(errors.ErrCodeTaskFailed, c.err.Error(), errors.WithTaskID(c.id))
		}
	}
	return r
}

// MarshalJSON implements json.Marshaler.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

// FromRecord rebuilds a task from a snapshot. The rebuilt task keeps its
// status, so a terminal record can never be executed again.
func FromRecord(r Record) (*Context, error) {
	if r.ID == "" || r.Type == "" {
		return nil, errors.Contract(errors.ErrCodeInvalidTask, "record needs id and type")
	}
	if !r.Status.Valid() {
		return nil, errors.Contract(errors.ErrCodeInvalidTask,
			fmt.Sprintf("record %s has unknown status %q", r.ID, r.Status))
	}
	c := &Context{
		id:        r.ID,
		typ:       r.Type,
		params:    r.Params.Clone(),
		status:    r.Status,
		result:    r.Result,
		createdAt: r.CreatedAt,
		updatedAt: r.UpdatedAt,
		attempts:  r.Attempts,
		now:       time.Now,
	}
	if r.Error != nil {
		c.err = r.Error
	}
	return c, nil
}
