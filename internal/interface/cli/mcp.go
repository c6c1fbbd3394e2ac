package cli

import (
	"fmt"
	"io"

	"github.com/neilberkman/supportchat/cmd/supportchat/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server exposing the support chat as tools",
	Long: `Start an MCP (Model Context Protocol) server on stdio that lets an
assistant ask the support backend questions and browse your sessions.

Configure in your MCP client's config file:
  {
    "mcpServers": {
      "supportchat": {
        "command": "supportchat",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol, so logs never go to the console
	a, err := openApp(io.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := mcp.StartServer(a.svc, a.log); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
