package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/neilberkman/supportchat/internal/core/render"
	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask the assistant one question",
	Long: `Send a single question and print the answer.

Without --session the question starts a new conversation. With --session
it continues an existing one.

Examples:
  supportchat ask How do I reset my password?
  supportchat ask --session 1712345678901 "And if I forgot my email?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Continue this session")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	if askSession != "" {
		if err := a.svc.Switch(ctx, askSession); err != nil {
			return err
		}
	} else {
		a.svc.NewChat()
	}

	c, err := a.svc.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, render.Message(botMessage(c.Answer)).Plain())
	if c.Failed() {
		return fmt.Errorf("backend unreachable: %w", c.Err)
	}
	fmt.Fprintf(out, "\n(session %s)\n", c.SessionID)
	return nil
}
