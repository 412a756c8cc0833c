package inventory

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/session"
)

// Kind identifies the physical resource type. Cleanup order is driven
// by it: snapshots hold references into their source volumes, and
// images back committed snapshots, so kinds are always processed
// snapshot → volume → image.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindVolume   Kind = "volume"
	KindImage    Kind = "image"
)

// cleanupOrder is the mandatory deletion sequence across kinds.
var cleanupOrder = []Kind{KindSnapshot, KindVolume, KindImage}

// Category is derived from the resource name prefix.
type Category string

const (
	// CategoryBase covers shared base artifacts (skybox-base:vN images,
	// skybox-base-vN snapshots).
	CategoryBase Category = "base"
	// CategorySession covers per-session volumes and snapshots.
	CategorySession Category = "session"
	// CategoryBuild covers ephemeral build volumes left behind by base
	// artifact builds.
	CategoryBuild Category = "build"
)

// Status is the classification outcome.
type Status string

const (
	// StatusCurrent marks the presently-pinned base artifact.
	StatusCurrent Status = "current"
	// StatusActive marks resources referenced by a live session, or
	// volumes pinned by a still-finalizing snapshot.
	StatusActive Status = "active"
	// StatusOld marks resources referenced only by a soft-deleted
	// session, and base artifacts superseded by a newer generation.
	StatusOld Status = "old"
	// StatusOrphaned marks resources nothing references.
	StatusOrphaned Status = "orphaned"
)

// Resource is one discovered artifact plus its classification. Records
// are recomputed on every discovery pass and never cached.
type Resource struct {
	ID        string
	Provider  string
	Kind      Kind
	Name      string
	Category  Category
	Status    Status
	SizeBytes uint64
	Region    string
	// Session is the linked session name when the resource is
	// referenced by one.
	Session string

	// pinsSource names the source volume of a still-finalizing
	// snapshot. Discovery folds these into Lookup.Protected.
	pinsSource string
}

// Lookup is the classification context. Building it reads the session
// store once; Classify itself never touches the store or a backend.
type Lookup struct {
	// BaseVersion is the pinned base artifact generation ("v3").
	BaseVersion string
	// Active maps backend handles (volume slug, snapshot slug,
	// container name) to the name of a live session holding them.
	Active map[string]string
	// Deleted maps handles to the name of a soft-deleted session.
	// Handles held by both map as Active; a resume re-claims the
	// handles of the removed session it was cloned from.
	Deleted map[string]string
	// Protected holds volume names that are the source of a snapshot
	// still finalizing. Deleting such a volume corrupts the snapshot.
	Protected map[string]bool
}

// BuildLookup derives the classification context from the session
// store and the pinned base generation.
func BuildLookup(ctx context.Context, store *session.Store, baseVersion string) (*Lookup, error) {
	sessions, err := store.ListIncludingDeleted(ctx)
	if err != nil {
		return nil, err
	}

	lk := &Lookup{
		BaseVersion: baseVersion,
		Active:      make(map[string]string),
		Deleted:     make(map[string]string),
		Protected:   make(map[string]bool),
	}
	for _, sess := range sessions {
		handles := []string{sess.VolumeSlug, sess.SnapshotSlug, sess.ContainerName}
		for _, h := range handles {
			if h == "" {
				continue
			}
			if sess.IsDeleted() {
				if _, taken := lk.Deleted[h]; !taken {
					lk.Deleted[h] = sess.Name
				}
				continue
			}
			lk.Active[h] = sess.Name
		}
	}
	return lk, nil
}

// Classify fills in category, status, and session linkage for one
// resource. It is a pure function of (resource, lookup): identical
// inputs always produce identical output, so the full decision table
// is unit-testable without any backend.
func Classify(r Resource, lk *Lookup) Resource {
	r.Category = categoryOf(r.Name)

	// A volume sourcing a finalizing snapshot is in use no matter what
	// references it; the next discovery pass reclassifies it.
	if r.Kind == KindVolume && lk.Protected[r.Name] {
		r.Status = StatusActive
		r.Session = lk.Active[r.Name]
		return r
	}

	switch r.Category {
	case CategoryBase:
		r.Status = classifyBase(r.Name, lk.BaseVersion)
	case CategoryBuild:
		r.Status = StatusOrphaned
	default:
		switch {
		case lk.Active[r.Name] != "":
			r.Session = lk.Active[r.Name]
			r.Status = StatusActive
		case lk.Deleted[r.Name] != "":
			r.Session = lk.Deleted[r.Name]
			r.Status = StatusOld
		default:
			r.Status = StatusOrphaned
		}
	}
	return r
}

// categoryOf maps a resource name to its category by prefix. Anything
// under the skybox- namespace that is not a base or build artifact is
// treated as session-scoped.
func categoryOf(name string) Category {
	switch {
	case strings.HasPrefix(name, config.BuildPrefix):
		return CategoryBuild
	case strings.HasPrefix(name, config.BaseArtifactPrefix):
		return CategoryBase
	default:
		return CategorySession
	}
}

// classifyBase compares a base artifact's generation against the
// pinned one. Local tags (skybox-base:v3) and remote slugs
// (skybox-base-v3) both carry the generation after the prefix. A
// generation older than the pinned one is superseded; anything else
// that is not the pinned identity has no owner.
func classifyBase(name, pinned string) Status {
	gen := strings.TrimLeft(strings.TrimPrefix(name, config.BaseArtifactPrefix), ":-")
	if gen == pinned {
		return StatusCurrent
	}
	have, err := version.NewVersion(gen)
	if err != nil {
		return StatusOrphaned
	}
	want, err := version.NewVersion(pinned)
	if err != nil {
		return StatusOrphaned
	}
	if have.LessThan(want) {
		return StatusOld
	}
	return StatusOrphaned
}

// Condemned filters to the resources cleanup may delete: old and
// orphaned ones. Current and active resources are always kept.
func Condemned(resources []Resource) []Resource {
	var out []Resource
	for _, r := range resources {
		if r.Status == StatusOld || r.Status == StatusOrphaned {
			out = append(out, r)
		}
	}
	return out
}

// GroupForCleanup splits resources into deletion batches in dependency
// order: snapshots, then volumes, then images. Kinds with no resources
// are omitted, so each kind appears at most once.
func GroupForCleanup(resources []Resource) [][]Resource {
	byKind := make(map[Kind][]Resource)
	for _, r := range resources {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	var groups [][]Resource
	for _, kind := range cleanupOrder {
		if batch := byKind[kind]; len(batch) > 0 {
			groups = append(groups, batch)
		}
	}
	return groups
}

// sortResources orders a discovery result for stable display:
// provider, then kind in cleanup order, then name.
func sortResources(resources []Resource) {
	rank := make(map[Kind]int, len(cleanupOrder))
	for i, k := range cleanupOrder {
		rank[k] = i
	}
	sort.Slice(resources, func(i, j int) bool {
		a, b := resources[i], resources[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.Kind != b.Kind {
			return rank[a.Kind] < rank[b.Kind]
		}
		return a.Name < b.Name
	})
}
