package cli

import (
	"fmt"
	"os"

	"github.com/neilberkman/supportchat/internal/core/chat"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull your sessions from the server",
	Long: `Merge the server's list of your chat sessions into the local store.

Sessions already on this machine keep their transcripts; new ones are
added with their server title. Requires login.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if a.svc.Identity().IsGuest() {
		return fmt.Errorf("sync: %w (run 'supportchat login' first)", chat.ErrNotLoggedIn)
	}

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	fmt.Fprintf(os.Stderr, "Syncing sessions from: %s\n", a.cfg.BackendURL)
	added, err := a.svc.SyncSessions(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d new session(s), %d total\n", added, a.svc.Registry().Len())
	return nil
}
