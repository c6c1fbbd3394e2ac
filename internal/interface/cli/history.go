package cli

import (
	"fmt"
	"os"

	"github.com/neilberkman/supportchat/internal/core/render"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print a session's transcript",
	Long: `Print the transcript of a chat session.

Logged-in users get the transcript from the server; guests see the copy
stored on this machine.

Examples:
  supportchat history 1712345678901`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	if _, err := a.svc.SyncSessions(ctx); err != nil {
		a.log.Debug("sync before history failed", "err", err)
	}
	if err := a.svc.Switch(ctx, args[0]); err != nil {
		return err
	}

	s, _ := a.svc.Registry().Active()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s (%s)\n\n", s.Title, s.ID)
	msgs := a.svc.Registry().Visible()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "(no messages)")
		return nil
	}
	for _, m := range msgs {
		r := render.Message(m)
		fmt.Fprintf(out, "%s: %s\n", render.RoleLabel(r.Role), r.Plain())
	}
	return nil
}
