package cmd

import (
	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/logging"
)

var shellCmd = &cobra.Command{
	Use:   "shell <session>",
	Short: "Open a shell in a session's sandbox",
	Long: `Opens an interactive login shell in the session's workspace, next to
the running agent.`,
	Args: cobra.ExactArgs(1),
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := resolveSession(ctx, args[0])
	if err != nil {
		return err
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	logging.Debug("opening shell", "name", sess.Name, "id", sess.ID)
	return p.Shell(ctx, sess.ID)
}
