package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vinayprograms/agentcore/task"
)

// Request is what a handler receives for one task. Params is a validated
// copy; mutating it has no effect on the task.
type Request struct {
	TaskID string
	Type   string
	Params task.Params
}

// Handler executes tasks of one type.
//
// Returning an error fails the task. Errors from the errors package keep
// their category, so a handler that detects its agent is compromised
// returns errors.Integrity to quarantine it. Any other error is treated as
// a task-scoped failure.
type Handler interface {
	Handle(ctx context.Context, req Request) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Entry binds a handler to the schema of its task type.
type Entry struct {
	Handler Handler
	Schema  *task.Schema
}

// Registry maps task types to handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a handler for taskType. schema may be nil to accept any
// parameters.
func (r *Registry) Register(taskType string, h Handler, schema *task.Schema) error {
	if taskType == "" {
		return fmt.Errorf("handler task type is required")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[taskType]; exists {
		return fmt.Errorf("handler for %q already registered", taskType)
	}
	r.entries[taskType] = Entry{Handler: h, Schema: schema}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(taskType string, h Handler, schema *task.Schema) {
	if err := r.Register(taskType, h, schema); err != nil {
		panic(err)
	}
}

// Lookup returns the entry for taskType.
func (r *Registry) Lookup(taskType string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[taskType]
	return e, ok
}

// Types returns the registered task types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
