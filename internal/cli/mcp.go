package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/mcpserver"
)

func init() {
	rootCmd.AddCommand(serveMCPCmd)
}

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the read-only action subset over MCP stdio",
	Long:  "Exposes dds_status, dds_list, and dds_exec_status as MCP tools. Calls go through dispatch under the mcp source identity, which the permission table keeps read-only.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return mcpserver.New(rt.dispatcher, rt.userID).Run(ctx)
	},
}
