package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/provider"
	"github.com/skybox-dev/skybox/internal/session"
)

var startCmd = &cobra.Command{
	Use:   "start <session>",
	Short: "Resume a stopped session",
	Long: `Boots a fresh sandbox from the session's last snapshot and restarts the
agent with its conversation restored. The resumed run is a new session
record linked to the old one.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var (
	startDetach bool
	startPrompt string
)

func init() {
	startCmd.Flags().BoolVarP(&startDetach, "detach", "d", false, "Return once the sandbox boots; provision in the background")
	startCmd.Flags().StringVarP(&startPrompt, "prompt", "p", "", "Fresh instruction for the resumed agent")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := resolveSession(ctx, args[0])
	if err != nil {
		return err
	}
	if sess.Status == session.StatusRunning {
		logInfo("Session %s is already running", sess.Name)
		return nil
	}
	if !sess.Resumable() {
		e := errors.ValidationError(fmt.Sprintf("session %s has nothing to resume from", sess.Name))
		e.Hint = "create a fresh session with: skybox up " + sess.Name
		return e
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	logging.Debug("resuming session", "name", sess.Name, "id", sess.ID)
	logInfo("Resuming session %s...", sess.Name)

	resumed, err := p.Resume(ctx, sess.ID, provider.ResumeOptions{
		Interactive: !startDetach,
		Prompt:      startPrompt,
	})
	if err != nil {
		return err
	}

	logSuccess("Session %s resumed", resumed.Name)
	fmt.Printf("  ID: %s (resumed from %s)\n", resumed.ID, sess.ID)

	if startDetach {
		fmt.Printf("  Provisioning continues in the background. Attach with: skybox attach %s\n", resumed.Name)
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("  Attach with: skybox attach %s\n", resumed.Name)
		return nil
	}
	return p.Attach(ctx, resumed.ID)
}
