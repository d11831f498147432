package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/contract"
)

var listProposedOnly bool

func init() {
	rootCmd.AddCommand(ddsCmd)
	ddsCmd.AddCommand(ddsListCmd)
	ddsCmd.AddCommand(ddsNewCmd)
	ddsCmd.AddCommand(ddsApproveCmd)
	ddsCmd.AddCommand(ddsRejectCmd)
	ddsListCmd.Flags().BoolVar(&listProposedOnly, "proposed", false, "Only show proposals awaiting approval")
}

var ddsCmd = &cobra.Command{
	Use:   "dds",
	Short: "Manage change proposals",
}

var ddsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		action := contract.ActionDDSList
		if listProposedOnly {
			action = contract.ActionDDSListProposed
		}
		return dispatchAndPrint(cmd, action, nil)
	},
}

var ddsNewCmd = &cobra.Command{
	Use:   "new <project> <title> <description...>",
	Short: "Create a new proposal (status proposed)",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatchAndPrint(cmd, contract.ActionDDSNew, map[string]any{
			"project":     args[0],
			"title":       args[1],
			"description": strings.Join(args[2:], " "),
		})
	},
}

var ddsApproveCmd = &cobra.Command{
	Use:   "approve <proposal-id>",
	Short: "Approve a proposed change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatchAndPrint(cmd, contract.ActionDDSApprove, map[string]any{"proposal_id": args[0]})
	},
}

var ddsRejectCmd = &cobra.Command{
	Use:   "reject <proposal-id>",
	Short: "Reject a proposed change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatchAndPrint(cmd, contract.ActionDDSReject, map[string]any{"proposal_id": args[0]})
	},
}
