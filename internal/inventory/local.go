package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/system"
)

// LocalBackend discovers container engine resources: per-session
// volumes, committed snapshot images, and base images. Containers
// themselves are compute units, not storage, and are never inventoried.
type LocalBackend struct {
	engine string
	exec   system.CommandExecutor
}

// NewLocalBackend wraps a resolved engine binary (podman or docker).
func NewLocalBackend(engine string) *LocalBackend {
	return &LocalBackend{engine: engine, exec: system.DefaultExecutor()}
}

func (b *LocalBackend) Provider() string { return config.ProviderLocal }

// Discover lists skybox-prefixed volumes and images. Engine volumes
// report no size without a full disk-usage scan, so volume sizes stay
// zero; image sizes parse from the engine's humanized column.
func (b *LocalBackend) Discover(ctx context.Context) ([]Resource, error) {
	var out []Resource

	vols, err := b.exec.Output(ctx, b.engine, "volume", "ls", "--format", "{{.Name}}")
	if err != nil {
		return nil, fmt.Errorf("volume listing failed: %w", err)
	}
	for _, name := range splitLines(string(vols)) {
		if !strings.HasPrefix(name, config.ContainerPrefix) {
			continue
		}
		out = append(out, Resource{
			ID:       name,
			Provider: config.ProviderLocal,
			Kind:     KindVolume,
			Name:     name,
		})
	}

	images, err := b.exec.Output(ctx, b.engine, "images",
		"--format", "{{.Repository}}:{{.Tag}}|{{.Size}}")
	if err != nil {
		return nil, fmt.Errorf("image listing failed: %w", err)
	}
	for _, line := range splitLines(string(images)) {
		ref, sizeCol, _ := strings.Cut(line, "|")
		kind, ok := imageKind(ref)
		if !ok {
			continue
		}
		size, _ := humanize.ParseBytes(strings.TrimSpace(sizeCol))
		out = append(out, Resource{
			ID:        ref,
			Provider:  config.ProviderLocal,
			Kind:      kind,
			Name:      ref,
			SizeBytes: size,
		})
	}
	return out, nil
}

// imageKind maps an image reference to the resource kind it backs.
// Committed session snapshots (skybox-snap-<name>:<id>) count as
// snapshots; base generations (skybox-base:vN) count as images.
func imageKind(ref string) (Kind, bool) {
	switch {
	case strings.HasPrefix(ref, config.SnapshotPrefix):
		return KindSnapshot, true
	case strings.HasPrefix(ref, config.BaseArtifactPrefix+":"):
		return KindImage, true
	default:
		return "", false
	}
}

// Delete removes one engine resource, folding engine output into the
// error on failure.
func (b *LocalBackend) Delete(ctx context.Context, r Resource) error {
	var args []string
	switch r.Kind {
	case KindVolume:
		args = []string{"volume", "rm", "-f", r.Name}
	case KindSnapshot, KindImage:
		args = []string{"rmi", "-f", r.Name}
	default:
		return fmt.Errorf("unknown resource kind %q", r.Kind)
	}
	if out, err := b.exec.Execute(ctx, b.engine, args...); err != nil {
		return fmt.Errorf("%s %s failed: %s: %w",
			b.engine, args[0], strings.TrimSpace(string(out)), err)
	}
	return nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
