package inventory

import (
	"context"
	"sync"

	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/session"
)

// Backend lists and deletes one provider's physical resources.
type Backend interface {
	// Provider returns the provider tag the backend serves.
	Provider() string
	// Discover lists every skybox-namespaced resource the backend
	// holds. Results are unclassified.
	Discover(ctx context.Context) ([]Resource, error)
	// Delete removes one resource.
	Delete(ctx context.Context, r Resource) error
}

// Inventory reconciles backend resources against the session store.
type Inventory struct {
	store       *session.Store
	baseVersion string
	backends    []Backend
}

// New builds an inventory over the given backends. baseVersion pins
// the current base artifact generation for classification.
func New(store *session.Store, baseVersion string, backends ...Backend) *Inventory {
	return &Inventory{store: store, baseVersion: baseVersion, backends: backends}
}

// Discover queries every backend concurrently and classifies the
// union against the session store. A backend that fails to list is
// logged and skipped; the other backends' results still come back.
func (inv *Inventory) Discover(ctx context.Context) ([]Resource, error) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		found []Resource
	)
	for _, b := range inv.backends {
		wg.Add(1)
		go func(b Backend) {
			defer wg.Done()
			resources, err := b.Discover(ctx)
			if err != nil {
				logging.Warn("resource discovery failed",
					"provider", b.Provider(), "error", err)
				return
			}
			mu.Lock()
			found = append(found, resources...)
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	lk, err := BuildLookup(ctx, inv.store, inv.baseVersion)
	if err != nil {
		return nil, err
	}
	for _, r := range found {
		if r.pinsSource != "" {
			lk.Protected[r.pinsSource] = true
		}
	}

	out := make([]Resource, 0, len(found))
	for _, r := range found {
		out = append(out, Classify(r, lk))
	}
	sortResources(out)
	return out, nil
}
