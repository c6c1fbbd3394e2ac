package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/supportchat/internal/core/content"
	"github.com/neilberkman/supportchat/internal/interface/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Open the interactive support chat.

Resumes your latest chat, or starts a new one. Press F1 inside the chat
for the list of keys.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// the TUI owns the terminal, so logs only go to the log file
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	id := a.svc.Resume()
	a.log.Debug("chat opened", "session", id, "guest", a.svc.Identity().IsGuest())

	exportDir := a.cfg.ExportDir
	if exportDir == "" {
		if exportDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve export directory: %w", err)
		}
	}

	m := tui.New(a.svc, tui.Options{
		Pages:          content.New(a.cfg.ContentDir),
		ExportDir:      exportDir,
		RequestTimeout: a.cfg.RequestTimeout,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
