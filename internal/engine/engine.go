// Package engine executes approved proposals inside ephemeral, path-
// restricted workspaces. Every attempt, good or bad, leaves an
// execution report and a last-execution record on the source proposal.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/ddsgate/internal/config"
	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

// Engine runs one proposal at a time. It is not safe for concurrent
// Execute calls on the same id; the scheduler and daemon serialize all
// executions by construction.
type Engine struct {
	proposals *proposal.Store
	reports   *report.Log
	cfg       *config.Config
	runner    ToolRunner
	now       func() time.Time
}

// New returns an engine using the configured external tool subprocess.
func New(store *proposal.Store, reports *report.Log, cfg *config.Config) *Engine {
	return &Engine{
		proposals: store,
		reports:   reports,
		cfg:       cfg,
		runner:    &ExecRunner{Command: cfg.Tool.Command, Timeout: cfg.Tool.Timeout()},
		now:       time.Now,
	}
}

// WithRunner swaps the tool subprocess, for tests.
func (e *Engine) WithRunner(r ToolRunner) *Engine {
	e.runner = r
	return e
}

// Execute runs the proposal with the given id. Preconditions are
// checked in order: idempotency first, then approval, then structural
// validation. The outcome is persisted as a report and written back
// onto the proposal before Execute returns, on success and failure
// alike.
func (e *Engine) Execute(ctx context.Context, id string) (report.Report, error) {
	done, err := e.reports.HasSuccess(id)
	if err != nil {
		return report.Report{}, envErr(id, "cannot read report log: %v", err)
	}
	if done {
		return report.Report{}, ddsErr(id, "already executed")
	}

	p, err := e.proposals.Get(id)
	if err != nil {
		return report.Report{}, ddsErr(id, "not found or not approved")
	}
	var ex *proposal.Executable
	switch v := p.(type) {
	case *proposal.Fix:
		ex = &v.Executable
	case *proposal.Executable:
		ex = v
	default:
		return report.Report{}, ddsErr(id, "proposal has no execution fields")
	}
	if ex.Status != proposal.StatusApproved {
		return report.Report{}, ddsErr(id, "not found or not approved")
	}

	var notes string
	var runErr error
	switch ex.Spec.Kind {
	case proposal.KindCodeChange, proposal.KindCodeFix:
		notes, runErr = e.runCodeChange(ctx, ex)
	case proposal.KindTouchFile:
		notes, runErr = e.runTouchFile(ex)
	case proposal.KindNoop:
		notes, runErr = e.runNoop(ex)
	default:
		runErr = ddsErr(id, "unknown execution kind %q", ex.Spec.Kind)
	}

	rep := report.Report{
		DDSID:     id,
		Action:    string(ex.Spec.Kind),
		Status:    report.StatusSuccess,
		Timestamp: e.now().UTC().Format(time.RFC3339Nano),
		Notes:     notes,
	}
	if runErr != nil {
		rep.Status = report.StatusFailed
		rep.Notes = runErr.Error()
	}
	return e.persist(rep, runErr)
}

// persist writes the report, the last-execution record, and the status
// edit. Persistence failures outrank the run error only when the run
// itself succeeded.
func (e *Engine) persist(rep report.Report, runErr error) (report.Report, error) {
	if err := e.reports.Append(rep); err != nil {
		if runErr != nil {
			return rep, runErr
		}
		return rep, execErr(rep.DDSID, fmt.Errorf("persist report: %w", err))
	}
	le := proposal.LastExecution{
		Status:     rep.Status,
		ExecutedAt: rep.Timestamp,
		Notes:      rep.Notes,
	}
	if err := e.proposals.SetLastExecution(rep.DDSID, le); err != nil && runErr == nil {
		return rep, execErr(rep.DDSID, fmt.Errorf("write last execution: %w", err))
	}
	target := proposal.StatusExecuted
	if rep.Status == report.StatusFailed {
		target = proposal.StatusFailed
	}
	if err := e.proposals.SetStatus(rep.DDSID, target); err != nil && runErr == nil {
		return rep, execErr(rep.DDSID, fmt.Errorf("update status: %w", err))
	}
	return rep, runErr
}

// validateCodeChange enforces structural validity before any file is
// touched. Each missing field fails with a field-specific message.
func (e *Engine) validateCodeChange(ex *proposal.Executable) error {
	id := ex.ID
	s := ex.Spec
	if s.Version != proposal.SupportedVersion {
		return ddsErr(id, "unsupported schema version %d (supported: %d)", s.Version, proposal.SupportedVersion)
	}
	if strings.TrimSpace(s.Tool) == "" {
		return ddsErr(id, "missing tool")
	}
	if s.Tool != e.cfg.Tool.Command {
		return ddsErr(id, "unsupported tool %q (configured: %q)", s.Tool, e.cfg.Tool.Command)
	}
	if strings.TrimSpace(s.Goal) == "" {
		return ddsErr(id, "missing goal")
	}
	if len(s.Instructions) == 0 {
		return ddsErr(id, "missing instructions")
	}
	if len(s.AllowedPaths) == 0 {
		return ddsErr(id, "missing allowed paths")
	}
	if s.Constraints == nil {
		return ddsErr(id, "missing constraints")
	}
	return nil
}

func (e *Engine) runCodeChange(ctx context.Context, ex *proposal.Executable) (string, error) {
	id := ex.ID
	if err := e.validateCodeChange(ex); err != nil {
		return "", err
	}

	src, err := ResolveProject(ex.Project, e.cfg.SearchRoots)
	if err != nil {
		return "", envErr(id, "%v", err)
	}

	workspace := filepath.Join(e.cfg.WorkspacesPath(), id)
	scoped := workspace + "-scoped"
	if err := Materialize(src, workspace); err != nil {
		return "", envErr(id, "materialize workspace: %v", err)
	}
	defer os.RemoveAll(workspace)
	defer os.RemoveAll(scoped)

	if err := ScopeWorkspace(workspace, scoped, ex.Spec.AllowedPaths); err != nil {
		return "", ddsErr(id, "%v", err)
	}

	prompt := BuildPrompt(ex.Spec)
	before, err := TakeSnapshot(scoped)
	if err != nil {
		return "", execErrf(id, "snapshot: %v", err)
	}

	res, toolErr := e.runner.Run(ctx, scoped, prompt, ex.Spec.AllowedPaths)

	// The diff is computed even when the tool failed or timed out:
	// partial changes still count against constraints.
	after, err := TakeSnapshot(scoped)
	if err != nil {
		return "", execErrf(id, "snapshot: %v", err)
	}
	diff := DiffSnapshots(before, after)

	if toolErr != nil {
		if toolErr == ErrToolTimeout {
			return "", envErr(id, "tool %q timed out after %s (%s)", e.cfg.Tool.Command, e.cfg.Tool.Timeout(), diff.Summary())
		}
		return "", envErr(id, "tool %q failed to start: %v", e.cfg.Tool.Command, toolErr)
	}
	if res.ExitCode != 0 {
		return "", execErrf(id, "tool exited with code %d: %s (%s)", res.ExitCode, tail(res.Stderr, 500), diff.Summary())
	}
	if err := ValidateConstraints(ex.Spec.Constraints, diff); err != nil {
		return "", execErrf(id, "%v", err)
	}
	if diff.Empty() {
		return "no changes", nil
	}
	return fmt.Sprintf("%d file(s) changed: %s", diff.ChangedCount(), diff.Summary()), nil
}

func (e *Engine) runTouchFile(ex *proposal.Executable) (string, error) {
	id := ex.ID
	rel := ex.Spec.Path
	if strings.TrimSpace(rel) == "" {
		return "", ddsErr(id, "missing path")
	}
	if len(ex.Spec.AllowedPaths) == 0 {
		return "", ddsErr(id, "missing allowed paths")
	}
	if ex.Spec.Content == nil {
		return "", ddsErr(id, "missing content")
	}
	root := filepath.Join(e.cfg.SandboxPath(), ex.Project)
	if err := validateScopedPath(mustAbs(root), rel); err != nil {
		return "", ddsErr(id, "%v", err)
	}
	if !underAllowed(rel, ex.Spec.AllowedPaths) {
		return "", ddsErr(id, "path %q is outside the allowed paths", rel)
	}

	target := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", envErr(id, "create sandbox dir: %v", err)
	}
	content := *ex.Spec.Content
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return "", envErr(id, "write %s: %v", rel, err)
	}
	return fmt.Sprintf("touched %s (%d bytes)", rel, len(content)), nil
}

func (e *Engine) runNoop(ex *proposal.Executable) (string, error) {
	id := ex.ID
	root := filepath.Join(e.cfg.SandboxPath(), ex.Project)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", envErr(id, "create sandbox dir: %v", err)
	}
	marker := filepath.Join(root, id+".noop")
	body := fmt.Sprintf("noop executed at %s\n", e.now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(marker, []byte(body), 0o644); err != nil {
		return "", envErr(id, "write marker: %v", err)
	}
	return "noop marker written", nil
}

func underAllowed(rel string, allowed []string) bool {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	for _, a := range allowed {
		prefix := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(filepath.FromSlash(a))), "/")
		if clean == prefix || strings.HasPrefix(clean, prefix+"/") {
			return true
		}
	}
	return false
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
