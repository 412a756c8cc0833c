package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
)

// Coordinator deletes condemned resources in dependency order.
type Coordinator struct {
	backends map[string]Backend
}

// NewCoordinator builds a coordinator dispatching deletions to the
// backend matching each resource's provider.
func NewCoordinator(backends ...Backend) *Coordinator {
	byProvider := make(map[string]Backend, len(backends))
	for _, b := range backends {
		byProvider[b.Provider()] = b
	}
	return &Coordinator{backends: byProvider}
}

// Result summarizes one cleanup run.
type Result struct {
	Deleted   []Resource
	Failed    []Resource
	Reclaimed uint64
}

// Run deletes the given resources batch by batch: every snapshot
// settles before the first volume, every volume before the first
// image. Within a batch deletions run concurrently; one failure is
// logged as a cleanup failure and never aborts its siblings.
func (c *Coordinator) Run(ctx context.Context, resources []Resource) *Result {
	res := &Result{}
	var mu sync.Mutex

	for _, batch := range GroupForCleanup(resources) {
		var wg sync.WaitGroup
		for _, r := range batch {
			wg.Add(1)
			go func(r Resource) {
				defer wg.Done()
				err := c.deleteOne(ctx, r)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					logging.Warn("cleanup failed",
						"provider", r.Provider, "kind", r.Kind, "name", r.Name, "error", err)
					res.Failed = append(res.Failed, r)
					return
				}
				logging.Debug("deleted resource",
					"provider", r.Provider, "kind", r.Kind, "name", r.Name)
				res.Deleted = append(res.Deleted, r)
				res.Reclaimed += r.SizeBytes
			}(r)
		}
		wg.Wait()
	}
	return res
}

func (c *Coordinator) deleteOne(ctx context.Context, r Resource) error {
	b, ok := c.backends[r.Provider]
	if !ok {
		return errors.CleanupFailed(r.Name, fmt.Errorf("no backend for provider %q", r.Provider))
	}
	if err := b.Delete(ctx, r); err != nil {
		return errors.CleanupFailed(string(r.Kind)+" "+r.Name, err)
	}
	return nil
}
