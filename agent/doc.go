// Package agent implements the worker agent: its status machine and the
// contract for executing a task.
//
// # Status
//
// An agent moves through a fixed transition table:
//
//	uninitialized → idle | error | disposed
//	idle          → busy | error | disposed
//	busy          → idle | error
//	error         → idle | error | disposed
//	disposed      → (terminal)
//
// Status lives in an atomic integer and every change is a compare-and-swap,
// so Status never blocks and at most one task runs on an agent at a time.
//
// # Execution
//
//	reg := agent.NewRegistry()
//	reg.MustRegister("echo", agent.HandlerFunc(func(ctx context.Context, req agent.Request) (any, error) {
//	    text, _ := req.Params.String("text")
//	    return text, nil
//	}), task.NewSchema(task.Field{Name: "text", Type: task.TypeString, Required: true}))
//
//	a, _ := agent.New(agent.Config{ID: "a1"}, agent.WithHandlers(reg))
//	_ = a.Initialize(ctx)
//
//	t := task.MustNew("echo", task.Params{"text": "hi"})
//	t, err := a.ExecuteTask(ctx, t)
//
// # Failures
//
// Failures fall into the categories of the errors package:
//
//   - Contract violations are returned synchronously; nothing changes.
//   - Task failures (bad parameters, handler errors, panics, timeouts)
//     fail the task and leave the agent idle.
//   - Integrity failures fail the task and quarantine the agent in error
//     status. Initialize brings it back.
//
// Consecutive task failures can be escalated to an integrity failure with
// WithMaxConsecutiveFailures.
package agent
