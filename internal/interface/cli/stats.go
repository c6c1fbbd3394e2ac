package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local session statistics",
	Long: `Display statistics about the chat sessions stored on this machine.

Shows session and message counts, how many sessions are on the server,
the date range and the size of the local store.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sessions := a.svc.Registry().Sessions()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Session Statistics")
	fmt.Fprintln(out, "==================")
	fmt.Fprintln(out)

	var synced, userMsgs, botMsgs int
	for _, s := range sessions {
		if s.Synced {
			synced++
		}
		for _, m := range s.Messages {
			if m.Role == models.RoleUser {
				userMsgs++
			} else {
				botMsgs++
			}
		}
	}

	fmt.Fprintf(out, "Total Sessions:    %d\n", len(sessions))
	fmt.Fprintf(out, "  On server:       %d\n", synced)
	fmt.Fprintf(out, "  Local only:      %d\n", len(sessions)-synced)
	fmt.Fprintf(out, "Questions Asked:   %d\n", userMsgs)
	fmt.Fprintf(out, "Answers Received:  %d\n", botMsgs)
	fmt.Fprintln(out)

	// Date range (only if we have sessions)
	if len(sessions) > 0 {
		oldest, newest := sessions[0].Created(), sessions[0].Created()
		for _, s := range sessions[1:] {
			if c := s.Created(); c.Before(oldest) {
				oldest = c
			} else if c.After(newest) {
				newest = c
			}
		}
		fmt.Fprintf(out, "Oldest Session:    %s\n", oldest.Format("Jan 2, 2006 3:04 PM"))
		fmt.Fprintf(out, "Newest Session:    %s\n", newest.Format("Jan 2, 2006 3:04 PM"))
		fmt.Fprintln(out)
	}

	ident := a.svc.Identity()
	if ident.IsGuest() {
		fmt.Fprintf(out, "Signed in as:      guest (%s)\n", ident.GuestID)
	} else {
		fmt.Fprintf(out, "Signed in as:      %s\n", ident.Email)
	}

	// Database file size
	fileInfo, err := os.Stat(dbPath)
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}
	fmt.Fprintf(out, "Database Location: %s\n", dbPath)
	fmt.Fprintf(out, "Database Size:     %s\n", humanize.Bytes(uint64(fileInfo.Size())))

	return nil
}
