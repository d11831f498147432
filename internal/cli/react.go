package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/reactive"
)

func init() {
	rootCmd.AddCommand(reactCmd)
}

var reactCmd = &cobra.Command{
	Use:   "react",
	Short: "Run one failure-to-fix pass over the report log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		outcome, fixID, err := reactive.NewWorker(rt.proposals, rt.reports).RunOnce()
		if err != nil {
			return err
		}
		switch outcome {
		case reactive.OutcomeFixCreated:
			fmt.Printf("drafted fix proposal %s (status proposed, awaiting approval)\n", fixID)
		case reactive.OutcomeDuplicate:
			fmt.Println("a fix for the latest failure already exists")
		default:
			fmt.Println("no qualifying failure found")
		}
		return nil
	},
}
