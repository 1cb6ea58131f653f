// Package shutdown tears a pool process down in ordered phases.
//
// Handlers register under a phase number. Lower phases run first and
// handlers sharing a phase run concurrently. A pool process uses four:
//
//	PhaseStopIntake  heartbeat sender, submission gate
//	PhaseDrain       pool drain and agent cleanup
//	PhaseFlush       journal index, span exporter
//	PhaseClose       bus and state store
//
// Usage:
//
//	coord := shutdown.NewCoordinator(shutdown.Config{Logger: log, ContinueOnError: true})
//	coord.RegisterFuncWithPhase("pool", p.Shutdown, shutdown.PhaseDrain)
//	coord.RegisterFuncWithPhase("bus", func(context.Context) error { return b.Close() }, shutdown.PhaseClose)
//	stop := coord.HandleSignals()
//	defer stop()
//	<-coord.Done()
//
// Handler panics are reported as handler errors. When the deadline passes
// between phases the remaining handlers are reported as skipped and the
// error wraps ErrTimeout. Handler failures are joined under ErrHandlerFailed.
package shutdown
