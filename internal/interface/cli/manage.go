package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <session-id> <title...>",
	Short: "Rename a session",
	Long: `Rename a chat session.

The new title is kept locally even if the server cannot be reached.

Examples:
  supportchat rename 1712345678901 Password reset`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRename,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Long: `Delete a chat session here and, for logged-in users, on the server.

Examples:
  supportchat delete 1712345678901`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	if _, err := a.svc.SyncSessions(ctx); err != nil {
		a.log.Debug("sync before rename failed", "err", err)
	}

	title := strings.Join(args[1:], " ")
	if err := a.svc.Rename(ctx, args[0], title); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], strings.TrimSpace(title))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	if _, err := a.svc.SyncSessions(ctx); err != nil {
		a.log.Debug("sync before delete failed", "err", err)
	}

	if err := a.svc.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
