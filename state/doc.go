// Package state provides the key-value storage behind the task journal.
//
// Two backends implement StateStore:
//
//   - MemoryStore keeps entries in process and expires them on a ticker.
//   - RedisStore keeps entries in Redis under a key prefix, with TTLs
//     enforced by the server.
//
// # Usage
//
//	store := state.NewMemoryStore()
//	defer store.Close()
//
//	_ = store.Put(ctx, "tasks.42", data, time.Hour)
//	val, err := store.Get(ctx, "tasks.42")
//	keys, _ := store.Keys(ctx, "tasks.*")
//
// Keys are dot-separated, must not contain whitespace and must not start or
// end with a dot.
package state
