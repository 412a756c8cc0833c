// Package session persists the record of every sandbox session in an
// embedded SQLite database under the data directory.
//
// # Model
//
// A Session row is the union of what both providers need: shared fields
// (name, branch, agent, model, status) plus backend-specific handles
// (container name for local sessions, volume and snapshot slugs for
// remote ones). Unused handles stay empty.
//
// Rows are never physically deleted. Removing a session stamps
// deleted_at instead, so resource classification can tell "referenced
// by a removed session" apart from "referenced by nothing".
//
// # Store
//
//	store, err := session.Open(paths.DBPath)
//	defer store.Close()
//
//	err = store.Upsert(ctx, sess)
//	sess, err := store.Get(ctx, id)
//	live, err := store.List(ctx, session.Filter{Status: session.StatusRunning})
//	all, err := store.ListIncludingDeleted(ctx)
//	err = store.SoftDelete(ctx, id)
//
// The database is opened once per process in WAL mode with a busy
// timeout; concurrent CLI invocations are serialized by SQLite's own
// file locking and nothing more. Schema changes are additive: every
// open attempts the full set of column additions and ignores the ones
// that already exist.
package session
