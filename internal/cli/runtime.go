package cli

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/ppiankov/ddsgate/internal/audit"
	"github.com/ppiankov/ddsgate/internal/config"
	"github.com/ppiankov/ddsgate/internal/contract"
	"github.com/ppiankov/ddsgate/internal/dispatch"
	"github.com/ppiankov/ddsgate/internal/engine"
	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

const sourceCLI = "cli"

// runtime bundles the stores, engine, and dispatcher one command
// needs. Each command builds a fresh runtime and closes it on exit.
type runtime struct {
	cfg        *config.Config
	proposals  *proposal.Store
	reports    *report.Log
	auditLog   *audit.Log
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	userID     string
}

func newRuntime() (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	proposals := proposal.NewStore(cfg.ProposalsPath())
	reports := report.NewLog(cfg.ReportsPath())
	auditLog, err := audit.Open(cfg.AuditPath())
	if err != nil {
		return nil, err
	}

	eng := engine.New(proposals, reports, cfg)
	d, err := dispatch.New(dispatch.Deps{
		Config:    cfg,
		Proposals: proposals,
		Reports:   reports,
		Audit:     auditLog,
		Executor:  eng,
	})
	if err != nil {
		auditLog.Close()
		return nil, err
	}

	return &runtime{
		cfg:        cfg,
		proposals:  proposals,
		reports:    reports,
		auditLog:   auditLog,
		engine:     eng,
		dispatcher: d,
		userID:     currentUser(),
	}, nil
}

// Dispatch routes one action under the cli source identity.
func (rt *runtime) Dispatch(ctx context.Context, action contract.Action, payload map[string]any) contract.Response {
	if ctx == nil {
		ctx = context.Background()
	}
	return rt.dispatcher.Dispatch(ctx, contract.NewRequest(action, payload, sourceCLI, rt.userID))
}

func (rt *runtime) Close() {
	if err := rt.auditLog.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: close audit log: %v\n", err)
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}
