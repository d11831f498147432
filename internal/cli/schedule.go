package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/scheduler"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Execute all approved proposals, stopping at the first failure",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		sum, err := scheduler.New(rt.proposals, rt.engine).Run(cmd.Context())
		if err != nil {
			return err
		}
		if len(sum.Results) == 0 {
			fmt.Println("no approved proposals")
			return nil
		}
		for _, r := range sum.Results {
			fmt.Printf("%s\t%s\t%s\n", r.ID, r.Status, r.Notes)
		}
		fmt.Printf("executed %d of %d\n", sum.ExecutedCount(), len(sum.Results))
		if sum.Stopped() {
			return fmt.Errorf("batch stopped at %s (%d skipped)", sum.FailedID, len(sum.Skipped))
		}
		return nil
	},
}
