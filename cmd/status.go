package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/provider"
	"github.com/skybox-dev/skybox/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine, credential and store status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := sky.Config

	fmt.Printf("Default provider: %s\n", cfg.Provider)

	if p, err := sky.Provider(config.ProviderLocal); err == nil {
		if local, ok := p.(*provider.LocalProvider); ok {
			engine, err := local.Engine(ctx)
			switch {
			case err != nil:
				fmt.Println("Engine: none found (install docker or podman)")
			case cfg.Engine != "":
				fmt.Printf("Engine: %s (configured)\n", engine)
			default:
				fmt.Printf("Engine: %s (auto-detected)\n", engine)
			}
		}
	}

	if cloudClient() != nil {
		fmt.Printf("Cloud: authenticated (region %s)\n", cfg.Region)
	} else {
		fmt.Println("Cloud: not authenticated")
	}

	fmt.Printf("Database: %s\n", sky.Paths.DBPath)

	live, err := sky.Store.List(ctx, session.Filter{})
	if err != nil {
		return err
	}
	all, err := sky.Store.ListIncludingDeleted(ctx)
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, sess := range live {
		counts[sess.Status]++
	}
	fmt.Printf("Sessions: %d running, %d stopped, %d exited, %d removed\n",
		counts[session.StatusRunning], counts[session.StatusStopped],
		counts[session.StatusExited], len(all)-len(live))

	if pending := sky.Queue.Pending(); pending > 0 {
		fmt.Printf("Background tasks: %d in flight\n", pending)
		for _, t := range sky.Queue.Tasks() {
			if !t.Settled() {
				fmt.Printf("  %s\n", t.Label)
			}
		}
	}

	return nil
}
