package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/skybox-dev/skybox/internal/health"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List sessions",
	RunE:  runPs,
}

var psQuiet bool

func init() {
	psCmd.Flags().BoolVarP(&psQuiet, "quiet", "q", false, "Only print session ids")
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sessions, err := allSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		logInfo("No sessions found. Create one with: skybox up <name>")
		return nil
	}

	if psQuiet {
		for _, sess := range sessions {
			fmt.Println(sess.ID)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tPROVIDER\tAGENT\tBRANCH\tSTATUS\tUPTIME\tCREATED")

	for _, sess := range sessions {
		status, uptime := probeHealth(ctx, sess)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sess.Name, sess.ID, sess.Provider, sess.Agent, sess.Branch,
			formatHealth(status), uptime, humanize.Time(sess.Created))
	}

	return w.Flush()
}

func formatHealth(status health.Status) string {
	return status.Icon() + " " + string(status)
}
