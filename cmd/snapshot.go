package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/logging"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <session>",
	Short: "Checkpoint a running session",
	Long: `Snapshots the session's workspace without stopping it. The snapshot
becomes the resume point, replacing any earlier one; the superseded
snapshot is reclaimed by gc.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := resolveSession(ctx, args[0])
	if err != nil {
		return err
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	logging.Debug("snapshotting session", "name", sess.Name, "id", sess.ID)
	logInfo("Snapshotting session %s...", sess.Name)

	slug, err := p.Snapshot(ctx, sess.ID)
	if err != nil {
		return err
	}

	logSuccess("Snapshot recorded for session %s", sess.Name)
	fmt.Printf("  %s\n", slug)
	return nil
}
