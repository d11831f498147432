package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ddsgate/internal/audit"
	"github.com/ppiankov/ddsgate/internal/config"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log hash chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		res := audit.Verify(cfg.AuditPath())
		if !res.Valid {
			return fmt.Errorf("audit chain broken at line %d: %s", res.ErrorLine, res.Error)
		}
		fmt.Printf("audit chain intact (%d entries)\n", res.Lines)
		return nil
	},
}
