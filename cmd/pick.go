package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skybox-dev/skybox/internal/agent"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/provider"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactive session picker",
	Long: `Opens an interactive list of sessions grouped by repository.

Use arrow keys or j/k to navigate, / to filter.

Actions:
  Enter  - Attach (resuming the session first if it is stopped)
  n      - Show how to create a new session
  d      - Show how to remove the selected session
  q/Esc  - Quit`,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logging.Debug("picker mode started")

	sessions, err := allSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		logInfo("No sessions found. Create one with: skybox up <name>")
		return nil
	}

	entries := make([]tui.Entry, len(sessions))
	for i, sess := range sessions {
		status, uptime := probeHealth(ctx, sess)
		entries[i] = tui.Entry{Session: sess, Status: status, Uptime: uptime}
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(tui.SimplePicker(entries))
		return nil
	}

	result, err := tui.RunPicker(entries)
	if err != nil {
		return fmt.Errorf("picker error: %w", err)
	}

	logging.Debug("picker result", "action", result.Action)

	switch result.Action {
	case tui.ActionAttach:
		if result.Session != nil {
			return attachFromPicker(cmd, result.Session)
		}

	case tui.ActionNew:
		fmt.Println("\nTo create a new session, run:")
		fmt.Println("  skybox up <name> --repo <path-or-url>")
		fmt.Println("\nAvailable agents:")
		fmt.Printf("  %s\n", strings.Join(agent.Names(), ", "))

	case tui.ActionRemove:
		if result.Session != nil {
			fmt.Printf("\nTo remove session %q, run:\n", result.Session.Name)
			fmt.Printf("  skybox down %s\n", result.Session.Name)
		}

	case tui.ActionQuit:
		// Just exit cleanly
	}

	return nil
}

// attachFromPicker attaches to the chosen session, resuming it first
// when it is stopped.
func attachFromPicker(cmd *cobra.Command, sess *session.Session) error {
	ctx := cmd.Context()

	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	if sess.Status != session.StatusRunning {
		if !sess.Resumable() {
			e := errors.SessionNotRunning(sess.Name)
			e.Hint = "it has no snapshot to resume from; create a fresh session with: skybox up " + sess.Name
			return e
		}
		logInfo("Resuming session %s...", sess.Name)
		resumed, err := p.Resume(ctx, sess.ID, provider.ResumeOptions{Interactive: true})
		if err != nil {
			return err
		}
		sess = resumed
	}

	return p.Attach(ctx, sess.ID)
}
