package cmd

import (
	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/logging"
)

var attachCmd = &cobra.Command{
	Use:   "attach [session]",
	Short: "Attach to a session's agent",
	Long: `Opens the agent's tmux session. Detach with the usual tmux prefix
(Ctrl-b d); the agent keeps running.

A remote session whose compute unit was reclaimed is resumed
automatically before attaching. Without an argument an interactive
picker opens.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttach,
}

func init() {
	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return runPick(cmd, nil)
	}
	ctx := cmd.Context()

	sess, err := resolveSession(ctx, args[0])
	if err != nil {
		return err
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	logging.Debug("attaching to session", "name", sess.Name, "id", sess.ID)
	return p.Attach(ctx, sess.ID)
}
