package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/neilberkman/supportchat/internal/core/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session to a file",
	Long: `Export a chat session to PDF, plain text, Markdown or YAML.

The file is named after the session id and written to --dir, the
export_dir config setting, or the current directory.

Examples:
  supportchat export 1712345678901
  supportchat export 1712345678901 --format txt
  supportchat export 1712345678901 -f md --dir ~/Documents`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "pdf", "Output format: pdf, txt, md, yaml")
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", "", "Output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	if _, err := a.svc.SyncSessions(ctx); err != nil {
		a.log.Debug("sync before export failed", "err", err)
	}
	// loads the remote transcript for logged-in users
	if err := a.svc.Switch(ctx, args[0]); err != nil {
		return err
	}

	dir := exportDir
	if dir == "" {
		dir = a.cfg.ExportDir
	}
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	path, err := a.svc.ExportSession(dir, args[0], exportFormat)
	if errors.Is(err, export.ErrEmptyTranscript) {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to export: the session has no messages.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported session to: %s\n", path)
	return nil
}
