package cmd

import (
	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/logging"
)

var stopCmd = &cobra.Command{
	Use:   "stop <session>",
	Short: "Stop a running session",
	Long: `Kills the sandbox and snapshots its workspace so the session can be
resumed later with 'skybox start'.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := resolveSession(ctx, args[0])
	if err != nil {
		return err
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	logging.Debug("stopping session", "name", sess.Name, "id", sess.ID)
	logInfo("Stopping session %s (snapshotting for resume)...", sess.Name)

	if err := p.Stop(ctx, sess.ID); err != nil {
		return err
	}

	logSuccess("Stopped session %s", sess.Name)
	return nil
}
