package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/daemon"
	"github.com/ppiankov/ddsgate/internal/reactive"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the report log and draft fixes for new failures",
	Long:  "Runs a daemon over the execution report log. Each change burst triggers one failure-to-fix pass; passes are serialized, so the proposal store keeps a single writer.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		worker := reactive.NewWorker(rt.proposals, rt.reports)
		pass := func() {
			outcome, fixID, err := worker.RunOnce()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reactive pass: %v\n", err)
				return
			}
			if outcome == reactive.OutcomeFixCreated {
				fmt.Printf("drafted fix proposal %s\n", fixID)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("watching %s\n", rt.cfg.ReportsPath())
		return daemon.NewWatcher(rt.cfg.ReportsPath(), pass).Run(ctx)
	},
}
