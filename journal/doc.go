// Package journal keeps a durable record of finished tasks.
//
// A Journal stores the snapshot of every completed or failed task in a
// state.StateStore under "tasks.<id>". With WithIndex it also maintains an
// in-memory bleve index so records can be found by type, status, error
// code, error text or parameter text:
//
//	j := journal.New(state.NewMemoryStore(), journal.WithIndex(), journal.WithTTL(24*time.Hour))
//	defer j.Close()
//
//	_ = j.Record(ctx, tc)
//	failed, _ := j.List(ctx, task.StatusFailed)
//	hits, _ := j.Search(ctx, "status:failed timeout", 20)
//
// The index lives in process memory. The store is the source of truth and
// Reindex rebuilds the index from it after a restart.
package journal
