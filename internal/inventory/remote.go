package inventory

import (
	"context"
	"fmt"

	"github.com/skybox-dev/skybox/internal/cloudapi"
	"github.com/skybox-dev/skybox/internal/config"
)

// gib converts the control plane's gigabyte sizing to bytes.
func gib(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n) * 1024 * 1024 * 1024
}

// RemoteBackend discovers control plane resources: block volumes and
// snapshots. Compute units are ephemeral and never inventoried.
type RemoteBackend struct {
	api *cloudapi.Client
}

// NewRemoteBackend wraps an authenticated control plane client.
func NewRemoteBackend(api *cloudapi.Client) *RemoteBackend {
	return &RemoteBackend{api: api}
}

func (b *RemoteBackend) Provider() string { return config.ProviderRemote }

// Discover lists every volume and snapshot on the account. Snapshots
// still finalizing pin their source volume so classification keeps it
// alive until the backend is done with it.
func (b *RemoteBackend) Discover(ctx context.Context) ([]Resource, error) {
	snapshots, err := b.api.Snapshots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot listing failed: %w", err)
	}
	volumes, err := b.api.Volumes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("volume listing failed: %w", err)
	}

	out := make([]Resource, 0, len(snapshots)+len(volumes))
	for _, s := range snapshots {
		r := Resource{
			ID:        s.ID,
			Provider:  config.ProviderRemote,
			Kind:      KindSnapshot,
			Name:      s.Slug,
			SizeBytes: gib(s.SizeGB),
			Region:    s.Region,
		}
		if s.Status == cloudapi.SnapshotFinalizing {
			r.pinsSource = s.SourceVolume
		}
		out = append(out, r)
	}
	for _, v := range volumes {
		out = append(out, Resource{
			ID:        v.ID,
			Provider:  config.ProviderRemote,
			Kind:      KindVolume,
			Name:      v.Slug,
			SizeBytes: gib(v.SizeGB),
			Region:    v.Region,
		})
	}
	return out, nil
}

// Delete removes one control plane resource.
func (b *RemoteBackend) Delete(ctx context.Context, r Resource) error {
	switch r.Kind {
	case KindSnapshot:
		return b.api.Snapshots.Delete(ctx, r.Name)
	case KindVolume:
		return b.api.Volumes.Delete(ctx, r.Name)
	default:
		return fmt.Errorf("unknown resource kind %q", r.Kind)
	}
}
