package cmd

import (
	shellquote "github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
)

var execCmd = &cobra.Command{
	Use:   "exec <session> -- <command>",
	Short: "Run a command in a session's workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	name := args[0]

	// Everything after -- is the command, flags and all.
	dash := cmd.ArgsLenAtDash()
	if dash != 1 || dash >= len(args) {
		return errors.ValidationError("usage: skybox exec <session> -- <command>")
	}
	command := args[dash:]

	ctx := cmd.Context()
	sess, err := resolveSession(ctx, name)
	if err != nil {
		return err
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	logging.Debug("executing in session",
		"name", sess.Name, "id", sess.ID, "command", shellquote.Join(command...))
	return p.Exec(ctx, sess.ID, command)
}
