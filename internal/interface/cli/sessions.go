package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/neilberkman/supportchat/internal/core/search"
	"github.com/spf13/cobra"
)

var (
	sessionsLimit  int
	sessionsNoSync bool
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions [filter...]",
	Aliases: []string{"list"},
	Short:   "List chat sessions",
	Long: `List chat sessions, newest first.

Logged-in users get their sessions from the server merged in first.
An optional filter matches titles (fuzzy) and message text, and accepts
after:, before:, date:, is:local and is:synced.

Examples:
  supportchat sessions
  supportchat sessions --limit 5
  supportchat sessions password after:last-week
  supportchat sessions is:local`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of sessions to display")
	sessionsCmd.Flags().BoolVar(&sessionsNoSync, "no-sync", false, "Do not contact the server")
}

func runSessions(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !sessionsNoSync {
		ctx, cancel := a.requestContext(cmd.Context())
		if _, err := a.svc.SyncSessions(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: showing local sessions only: %v\n", err)
		}
		cancel()
	}

	sessions := a.svc.Registry().Sessions()
	// registry order is oldest first
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}

	query := strings.Join(args, " ")
	results := search.Filter(sessions, search.ParseQuery(query, time.Now()))

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		if query != "" {
			fmt.Fprintf(out, "No sessions match: %s\n", query)
		} else {
			fmt.Fprintln(out, "No sessions yet. Run 'supportchat' to start chatting.")
		}
		return nil
	}

	if len(results) > sessionsLimit {
		results = results[:sessionsLimit]
	}

	fmt.Fprintf(out, "Showing %d session(s)\n\n", len(results))
	for i, r := range results {
		s := r.Session
		marker := " "
		if !s.Synced {
			marker = "*"
		}
		fmt.Fprintf(out, "[%d]%s %s\n", i+1, marker, s.ID)
		fmt.Fprintf(out, "    Title: %s\n", truncateTitle(s.Title, 70))
		if len(s.Messages) > 0 {
			fmt.Fprintf(out, "    Messages: %d\n", len(s.Messages))
		}
		fmt.Fprintf(out, "    Created: %s\n", formatTimestamp(s.Created()))
		if r.Snippet != "" {
			fmt.Fprintf(out, "    Match: %s\n", truncateTitle(r.Snippet, 70))
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "* = not yet on the server")
	return nil
}
