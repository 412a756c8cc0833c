// Package inventory reconciles physical backend resources against the
// session store and reaps what nothing references anymore.
//
// Discovery lists both backends concurrently and classifies every
// skybox-namespaced volume, snapshot, and image as current (the pinned
// base artifact), active (held by a live session), old (held only by a
// removed session, or a superseded base generation), or orphaned.
// Classification is pure: the store is read once into a Lookup, and
// Classify never performs I/O.
//
//	inv := inventory.New(store, provider.BaseVersion, localBackend, remoteBackend)
//	resources, err := inv.Discover(ctx)
//	result := inventory.NewCoordinator(localBackend, remoteBackend).
//		Run(ctx, inventory.Condemned(resources))
//
// Deletion order is fixed — snapshots, then volumes, then images —
// because snapshots reference their source volumes. Within one kind
// deletions run concurrently and failures never abort siblings.
package inventory
