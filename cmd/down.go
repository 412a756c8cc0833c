package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/workspace"
)

var downCmd = &cobra.Command{
	Use:   "down <session>",
	Short: "Stop and remove a session",
	Long: `Tears down the session's backend resources and marks the record deleted.
The record stays queryable for resource accounting; gc reclaims anything
the teardown could not.

Mount-mode workspaces are removed from the host; the session branch is
kept if it has commits that never landed anywhere else.`,
	Args: cobra.ExactArgs(1),
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := resolveSession(ctx, args[0])
	if err != nil {
		return err
	}
	p, err := providerFor(sess)
	if err != nil {
		return err
	}

	logging.Debug("removing session", "name", sess.Name, "id", sess.ID, "provider", sess.Provider)
	logInfo("Removing session %s...", sess.Name)

	if err := p.Remove(ctx, sess.ID); err != nil {
		return err
	}
	removeMountWorkspace(cmd, sess)

	logSuccess("Removed session %s", sess.Name)
	return nil
}

// removeMountWorkspace unwinds the host-side checkout of a mount-mode
// session. Failures are logged, never fatal: the sandbox is already
// gone and gc cannot help with a foreign directory, so the user keeps
// whatever is left.
func removeMountWorkspace(cmd *cobra.Command, sess *session.Session) {
	if sess.MountDir == "" || sess.Repo == "" {
		return
	}
	// Only unwind checkouts we created; a directory mounted straight
	// from the repository is the user's.
	if !strings.HasPrefix(sess.MountDir, sky.Paths.WorktreesDir) {
		return
	}
	backend := workspace.DetectBackend(sess.Repo)
	if backend == nil {
		logWarning("Workspace %s left in place: %s is no longer a repository", sess.MountDir, sess.Repo)
		return
	}
	if err := backend.Remove(cmd.Context(), sess.Repo, sess.Branch, sess.MountDir); err != nil {
		logWarning("Could not remove workspace %s: %v", sess.MountDir, err)
	}
}
