// Package undo makes any write against the document store reversible for a
// bounded time window without resource-specific rollback code.
//
// Every mutating request runs inside a Mutation:
//
//	m := engine.Begin(ctx)        // takes the writer lock, snapshots the store
//	defer m.Done()
//	... handler writes, calls Track(ctx, resource, id) ...
//	entry := m.Commit(ctx, method, path, actor)
//
// Commit turns the pre-mutation snapshot into a self-contained Plan (the
// inverse of the write) plus an optional SideEffects bundle for resources
// that fan out into denormalized collections, and prepends an Entry to the
// Log. Tracking is best-effort: a write that cannot be reversed simply
// produces no entry.
//
// # Bounds
//
// The Log keeps at most Capacity entries (default 300) and each entry lives
// TTL (default 60 days). Expired entries are dropped lazily whenever the log
// is read or appended to; nothing runs on a timer.
//
// # Concurrency
//
// Begin/Done and Rollback share one mutex per Engine, so capture, handler
// write, plan build and append never interleave with another write or a
// rollback. Reads of the store do not take it. Hooks registered with
// OnRollback run inside the same critical section as the rollback. Request
// bodies are read before Begin, so the lock is never held across network
// reads.
//
// # Staleness
//
// Rolling back an entry does not invalidate other entries that touch the
// same item. Rolling back an older entry after a newer write overwrites
// that newer write.
package undo
