package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs <session>",
	Short: "View agent output",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var (
	logsFollow bool
	logsLines  int
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show (0 for everything)")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := resolveSession(ctx, args[0])
	if err != nil {
		return err
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	if logsFollow {
		logging.Debug("following logs", "name", sess.Name, "id", sess.ID)
		err := p.FollowLogs(ctx, sess.ID, os.Stdout)
		// Interrupt is the one way out of a follow.
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}
		return err
	}

	out, err := p.Logs(ctx, sess.ID, logsLines)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
