// Package task tracks fire-and-forget background work for the life of
// the process.
//
// Lifecycle operations (detached provisioning, parallel removals,
// cleanup batches) run as queued tasks so the CLI can keep going and
// block on completion only at exit:
//
//	queue := task.NewQueue()
//	queue.Enqueue("remove session fix-auth", func() error {
//		return provider.Remove(ctx, id)
//	})
//	...
//	if err := queue.WaitAll(ctx); err != nil { ... }
//
// Tasks are in-memory only and never persisted; a crashed process
// forgets them, and reconciliation on the next run picks up whatever
// they left behind.
package task
