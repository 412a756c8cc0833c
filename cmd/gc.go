package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/inventory"
	"github.com/skybox-dev/skybox/internal/provider"
)

var gcForce bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim unused sandbox storage",
	Long: `Discovers volumes, snapshots and images across both backends and
classifies each against the session database.

Without --force, prints what would be deleted (dry run).
With --force, deletes snapshots first, then volumes, then images.

Condemned resources:
  - old: referenced only by removed sessions, or a superseded base image
  - orphaned: referenced by nothing skybox knows about

Resources held by live sessions and the current base image are never
touched. Volumes backing a snapshot that is still finalizing are kept
until the snapshot settles.`,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcForce, "force", false, "Actually delete (default is dry run)")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	backends := gcBackends(ctx)
	if len(backends) == 0 {
		return errors.ConfigError("no backend reachable for cleanup", nil)
	}

	inv := inventory.New(sky.Store, provider.BaseVersion, backends...)
	resources, err := inv.Discover(ctx)
	if err != nil {
		return err
	}

	condemned := inventory.Condemned(resources)
	if len(condemned) == 0 {
		logInfo("Nothing to clean up (%d resource(s), all accounted for)", len(resources))
		return nil
	}

	printResources(condemned)

	if !gcForce {
		fmt.Printf("\nDry run: %s in %d resource(s) would be reclaimed. Re-run with --force to delete.\n",
			humanize.IBytes(totalSize(condemned)), len(condemned))
		return nil
	}

	result := inventory.NewCoordinator(backends...).Run(ctx, condemned)
	if len(result.Failed) > 0 {
		logWarning("%d deletion(s) failed, re-run gc to retry", len(result.Failed))
	}
	logSuccess("Reclaimed %s from %d resource(s)", humanize.IBytes(result.Reclaimed), len(result.Deleted))
	return nil
}

// gcBackends returns the reachable cleanup backends. A missing engine
// or missing cloud credentials narrows the sweep instead of failing it.
func gcBackends(ctx context.Context) []inventory.Backend {
	var backends []inventory.Backend

	if p, err := sky.Provider(config.ProviderLocal); err == nil {
		if local, ok := p.(*provider.LocalProvider); ok {
			engine, err := local.Engine(ctx)
			if err != nil {
				logWarning("Skipping local resources: %v", err)
			} else {
				backends = append(backends, inventory.NewLocalBackend(engine))
			}
		}
	}

	if client := cloudClient(); client != nil {
		backends = append(backends, inventory.NewRemoteBackend(client))
	} else {
		logWarning("Skipping remote resources: not authenticated (run: skybox auth login)")
	}
	return backends
}

func printResources(resources []inventory.Resource) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tKIND\tNAME\tSTATUS\tSESSION\tSIZE")
	for _, r := range resources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Provider, r.Kind, r.Name, r.Status, orDash(r.Session), sizeOf(r))
	}
	_ = w.Flush()
}

func sizeOf(r inventory.Resource) string {
	if r.SizeBytes == 0 {
		return "-"
	}
	return humanize.IBytes(r.SizeBytes)
}

func totalSize(resources []inventory.Resource) uint64 {
	var total uint64
	for _, r := range resources {
		total += r.SizeBytes
	}
	return total
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
