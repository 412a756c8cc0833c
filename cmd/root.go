package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/app"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
)

// sky is the application handle every command works against. It is
// built once in the root PersistentPreRunE; tests seed it directly.
var sky *app.App

var rootCmd = &cobra.Command{
	Use:   "skybox",
	Short: "Sandbox sessions for autonomous coding agents",
	Long: `skybox provisions ephemeral sandboxes for coding agents.

Each session is a local container or a remote micro-VM with:
  - An agent working on its own git branch
  - Workspace storage that survives stop and resume
  - An append-only agent log
  - An attachable tmux session`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, os.Stderr)
		if sky != nil {
			return nil
		}
		a, err := app.New()
		if err != nil {
			return err
		}
		sky = a
		return nil
	},
}

func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logging.UserError("%v", err)
		if hint := errors.GetHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
	}

	drainQueue()
	if sky != nil {
		_ = sky.Close()
	}
	return err
}

// drainQueue holds the process open while detached provisioning is
// still in flight. A second interrupt abandons the wait.
func drainQueue() {
	if sky == nil || sky.Queue == nil || sky.Queue.Pending() == 0 {
		return
	}
	q := sky.Queue
	q.SetShuttingDown(true)

	logInfo("Waiting for %d background task(s), interrupt again to force quit:", q.Pending())
	for _, t := range q.Tasks() {
		if !t.Settled() {
			logInfo("  %s", t.Label)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := q.WaitAll(ctx); err != nil {
		logWarning("Forced quit with background tasks still running")
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
