package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/contract"
)

func init() {
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(execStatusCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec <dds-id>",
	Short: "Execute an approved proposal in its sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatchAndPrint(cmd, contract.ActionExecute, map[string]any{"dds_id": args[0]})
	},
}

var execStatusCmd = &cobra.Command{
	Use:   "exec-status [dds-id]",
	Short: "Show recent execution outcomes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{}
		if len(args) == 1 {
			payload["dds_id"] = args[0]
		}
		return dispatchAndPrint(cmd, contract.ActionExecStatus, payload)
	},
}
