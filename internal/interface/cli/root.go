package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/neilberkman/supportchat/internal/core/config"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	configPath  string
	backendURL  string
	verbose     bool
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "supportchat",
	Short: "Customer support chat client",
	Long: `supportchat - chat with the support assistant from your terminal

Ask questions as a guest or log in to keep your conversations on the
server. Browse, rename, delete and export past chat sessions.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the chat TUI if no subcommand specified
		return chatCmd.RunE(cmd, args)
	},
}

func init() {
	dir := config.Dir()

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", filepath.Join(dir, "supportchat.db"), "Local session store path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", filepath.Join(dir, "config.toml"), "Config file path")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}
