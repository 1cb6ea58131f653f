// Package pool supervises a set of agents.
//
// A Pool owns its agents' lifecycles: Start initializes them, Submit routes
// a task to an idle agent advertising the wanted capability, Recover
// re-initializes agents quarantined in error status, and Shutdown drains
// and disposes them.
//
//	p := pool.New(pool.Config{Name: "workers"},
//	    pool.WithJournal(j),
//	    pool.WithBus(b),
//	    pool.WithLogger(log))
//	_ = p.Add(a1)
//	_ = p.Add(a2)
//	if err := p.Start(ctx); err != nil {
//	    log.Warn("some agents failed to start", map[string]interface{}{"error": err.Error()})
//	}
//	tc, err := p.Submit(ctx, "", task.MustNew("echo", task.Params{"text": "hi"}))
//
// Routing reads idle candidates from the registry and then re-checks the
// agent itself, so a stale registry entry costs one skipped candidate and
// never a double assignment: the agent's own idle → busy swap decides. The
// pool never queues. When every candidate is taken Submit returns
// NO_CAPACITY and the task stays pending for the caller to resubmit.
//
// Terminal tasks are recorded in the journal and published as JSON on
// "tasks.done.<type>". Neither sink can fail a task.
package pool
