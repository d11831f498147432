// Package cli wires the ddsgate commands. Every action goes through
// dispatch under the source identity "cli"; commands are thin wrappers
// that build requests and print responses.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/contract"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ddsgate",
	Short: "Governed execution of DDS change proposals",
	Long:  "Every change is a proposal: drafted, human-approved, executed inside a path-restricted sandbox, and audited. Failures draft fix proposals — they never retry.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.ddsgate/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// dispatchAndPrint routes one action through the dispatcher and prints
// the outcome. A non-ok response becomes a command error.
func dispatchAndPrint(cmd *cobra.Command, action contract.Action, payload map[string]any) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	resp := rt.Dispatch(cmd.Context(), action, payload)
	if !resp.OK() {
		return fmt.Errorf("%s (audit %s)", resp.Message, resp.AuditID)
	}
	fmt.Println(resp.Message)
	return nil
}
