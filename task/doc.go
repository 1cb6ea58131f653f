// Package task defines the unit of work executed by agents.
//
// A task is created pending and moves through a fixed status table:
//
//	pending → running → completed
//	                 ↘ failed
//
// Completed and failed are terminal. A terminal task is never executed
// again; submitting one to an agent is a contract violation.
//
// # Basic Usage
//
//	t, err := task.New("echo", task.Params{"text": "hello"})
//	// hand t to agent.ExecuteTask
//	if t.Status() == task.StatusCompleted {
//	    fmt.Println(t.Result())
//	}
//
// # Parameters and Schemas
//
// Parameters are an open string-keyed map. Task types that need structured
// input declare a Schema; the agent validates parameters against it before
// the handler runs and fails the task with INVALID_INPUT otherwise:
//
//	schema := task.NewSchema(
//	    task.Field{Name: "prompt", Type: task.TypeString, Required: true},
//	    task.Field{Name: "max_tokens", Type: task.TypeInt, Default: 1024},
//	)
//
// # Snapshots
//
// Snapshot returns a Record that serializes to JSON for journals and
// message buses. FromRecord restores it with its status intact.
package task
