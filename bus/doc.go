// Package bus provides the publish/subscribe transport used for task
// completion events and agent heartbeats.
//
// Two implementations are available:
//
//   - MemoryBus delivers in process.
//   - NATSBus delivers through a NATS server.
//
// Subjects are dot-separated tokens. Subscriptions may use "*" for one token
// and ">" for the remainder:
//
//	sub, _ := b.Subscribe("tasks.done.*")
//	defer sub.Unsubscribe()
//
//	_ = b.Publish("tasks.done.echo", data)
//	msg := <-sub.Messages()
//
// Publishing never blocks. A subscriber whose buffer is full misses the
// message.
package bus
