// Package registry tracks the agents of a pool and answers routing queries.
//
// A pool registers each agent with its capabilities and mirrors every status
// change into the registry, so routing is a lookup rather than a scan of
// live agents:
//
//	reg := registry.NewMemoryRegistry()
//	_ = reg.Register(registry.InfoFromConfig(a.Config(), a.Status()))
//
//	idle, _ := reg.FindIdle("summarize")
//
// Results come back in registration order. Watch delivers added, updated
// and removed events to observers such as dashboards or tests.
package registry
