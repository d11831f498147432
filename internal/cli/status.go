package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/contract"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize proposal and execution state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatchAndPrint(cmd, contract.ActionSystemStatus, nil)
	},
}
