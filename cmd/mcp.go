package cmd

import (
	"github.com/huangsam/exprora/internal/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Short:   "Start the Exprora MCP server",
	Long:    `Launch an MCP server over stdio that lets AI agents compute statistics and read experiment results via standard tools.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		// stdio carries the protocol, so nothing may log to stdout.
		return mcp.StartMCPServer(rootCtx, newEngine(zap.NewNop()), version)
	},
}
