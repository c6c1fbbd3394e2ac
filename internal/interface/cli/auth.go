package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	authPassword string
	authUsername string
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and load your sessions from the server",
	Long: `Log in with your support account.

The password is read from --password or, if omitted, from stdin.

Examples:
  supportchat login student@example.edu
  echo "$PASSWORD" | supportchat login student@example.edu`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create a support account",
	Long: `Create a support account.

Examples:
  supportchat register student@example.edu --username student`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget this account's sessions",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current identity and backend status",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Password (default: read from stdin)")
	registerCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Password (default: read from stdin)")
	registerCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Display name (default: part of email before @)")
}

func readPassword(cmd *cobra.Command) (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("password is required")
	}
	return pw, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	pw, err := readPassword(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	if err := a.svc.Login(ctx, args[0], pw); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d sessions)\n", args[0], a.svc.Registry().Len())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	pw, err := readPassword(cmd)
	if err != nil {
		return err
	}
	username := authUsername
	if username == "" {
		username, _, _ = strings.Cut(args[0], "@")
	}

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	msg, err := a.svc.Register(ctx, username, args[0], pw)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Registration successful."
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.svc.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	ident := a.svc.Identity()
	if ident.IsGuest() {
		fmt.Fprintf(out, "Guest (%s)\n", ident.GuestID)
	} else {
		fmt.Fprintf(out, "Logged in as %s\n", ident.Email)
	}
	fmt.Fprintf(out, "Sessions: %d\n", a.svc.Registry().Len())

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	status := "ok"
	if err := a.svc.Health(ctx); err != nil {
		status = "unreachable (" + err.Error() + ")"
	}
	fmt.Fprintf(out, "Backend: %s %s\n", a.client.BaseURL(), status)
	return nil
}
