package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/ddsgate/internal/audit"
	"github.com/ppiankov/ddsgate/internal/config"
	"github.com/ppiankov/ddsgate/internal/contract"
	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

type fakeExecutor struct {
	rep report.Report
	err error
}

func (f *fakeExecutor) Execute(_ context.Context, id string) (report.Report, error) {
	if f.err != nil {
		return report.Report{}, f.err
	}
	rep := f.rep
	rep.DDSID = id
	return rep, nil
}

type fakeTasks struct{ todos []Todo }

func (f *fakeTasks) Todos() ([]Todo, error) { return f.todos, nil }

type testEnv struct {
	d         *Dispatcher
	cfg       *config.Config
	proposals *proposal.Store
	auditPath string
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir

	store := proposal.NewStore(cfg.ProposalsPath())
	reports := report.NewLog(cfg.ReportsPath())
	log, err := audit.Open(cfg.AuditPath())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })

	deps := Deps{
		Config:    cfg,
		Proposals: store,
		Reports:   reports,
		Audit:     log,
		Executor:  &fakeExecutor{rep: report.Report{Status: report.StatusSuccess, Notes: "done"}},
	}
	if mutate != nil {
		mutate(&deps)
	}
	d, err := New(deps)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{d: d, cfg: cfg, proposals: store, auditPath: cfg.AuditPath()}
}

func (e *testEnv) entries(t *testing.T) []audit.Entry {
	t.Helper()
	out, err := audit.ReadAll(e.auditPath)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func (e *testEnv) lastEntry(t *testing.T) audit.Entry {
	t.Helper()
	entries := e.entries(t)
	if len(entries) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return entries[len(entries)-1]
}

func req(action contract.Action, payload map[string]any) contract.Request {
	return contract.NewRequest(action, payload, "cli", "tester")
}

func TestUnknownActionFailsClosed(t *testing.T) {
	e := newTestEnv(t, nil)
	resp := e.d.Dispatch(context.Background(), req("drop_tables", nil))
	if resp.OK() {
		t.Fatal("unknown action must be rejected")
	}
	entry := e.lastEntry(t)
	if entry.Level != audit.LevelGuardReject {
		t.Fatalf("level = %s, want guard_reject", entry.Level)
	}
	if entry.AuditID != resp.AuditID {
		t.Fatal("response audit id does not match the recorded entry")
	}
}

func TestUnregisteredSourceRejected(t *testing.T) {
	e := newTestEnv(t, nil)
	r := contract.NewRequest(contract.ActionSystemStatus, nil, "voice", "tester")
	resp := e.d.Dispatch(context.Background(), r)
	if resp.OK() {
		t.Fatal("unregistered source must be rejected")
	}
	if !strings.Contains(resp.Message, "unknown source") {
		t.Fatalf("message = %q", resp.Message)
	}
	if e.lastEntry(t).Level != audit.LevelGuardReject {
		t.Fatal("expected guard_reject entry")
	}
}

func TestRestrictedSourceCannotMutate(t *testing.T) {
	e := newTestEnv(t, nil)
	r := contract.NewRequest(contract.ActionExecute, map[string]any{"dds_id": "DDS-x"}, "mcp", "tester")
	resp := e.d.Dispatch(context.Background(), r)
	if resp.OK() {
		t.Fatal("mcp must not invoke execute")
	}
	if e.lastEntry(t).Level != audit.LevelGuardReject {
		t.Fatal("expected guard_reject entry")
	}

	// The same source passes for a read-only action.
	r = contract.NewRequest(contract.ActionSystemStatus, nil, "mcp", "tester")
	if resp := e.d.Dispatch(context.Background(), r); !resp.OK() {
		t.Fatalf("read-only action rejected for mcp: %s", resp.Message)
	}
}

func TestUserAllowList(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) {
		d.Config.AllowedUserIDs = []string{"alice"}
	})
	resp := e.d.Dispatch(context.Background(), contract.NewRequest(contract.ActionSystemStatus, nil, "cli", "mallory"))
	if resp.OK() {
		t.Fatal("user outside allow-list must be rejected")
	}
	resp = e.d.Dispatch(context.Background(), contract.NewRequest(contract.ActionSystemStatus, nil, "cli", "alice"))
	if !resp.OK() {
		t.Fatalf("allowed user rejected: %s", resp.Message)
	}
}

func TestPayloadSchemaGuard(t *testing.T) {
	e := newTestEnv(t, nil)
	resp := e.d.Dispatch(context.Background(), req(contract.ActionDDSApprove, map[string]any{}))
	if resp.OK() {
		t.Fatal("missing proposal_id must be rejected")
	}
	entry := e.lastEntry(t)
	if entry.Level != audit.LevelGuardReject {
		t.Fatalf("level = %s, want guard_reject", entry.Level)
	}
}

func TestMutatingSuccessIsDecision(t *testing.T) {
	e := newTestEnv(t, nil)
	payload := map[string]any{"project": "demo", "title": "add endpoint", "description": "secret details"}
	resp := e.d.Dispatch(context.Background(), req(contract.ActionDDSNew, payload))
	if !resp.OK() {
		t.Fatalf("dds_new failed: %s", resp.Message)
	}
	entry := e.lastEntry(t)
	if entry.Level != audit.LevelDecision {
		t.Fatalf("level = %s, want decision", entry.Level)
	}
	if entry.ReadOnly {
		t.Fatal("dds_new must be recorded as mutating")
	}
	if entry.PayloadSummary["project"] != "demo" {
		t.Fatalf("summary missing traceable key: %+v", entry.PayloadSummary)
	}
	if _, leaked := entry.PayloadSummary["description"]; leaked {
		t.Fatal("non-traceable payload field leaked into the audit log")
	}
	if len(entry.PayloadKeys) != 3 {
		t.Fatalf("payload keys = %v", entry.PayloadKeys)
	}
}

func TestReadOnlySuccessIsInfo(t *testing.T) {
	e := newTestEnv(t, nil)
	resp := e.d.Dispatch(context.Background(), req(contract.ActionSystemStatus, nil))
	if !resp.OK() || !resp.ReadOnly {
		t.Fatalf("resp = %+v", resp)
	}
	if e.lastEntry(t).Level != audit.LevelInfo {
		t.Fatal("expected info entry")
	}
}

func TestHandlerFailureIsErrorLevel(t *testing.T) {
	e := newTestEnv(t, nil)
	resp := e.d.Dispatch(context.Background(), req(contract.ActionDDSApprove, map[string]any{"proposal_id": "DDS-missing"}))
	if resp.OK() {
		t.Fatal("approving a missing proposal must fail")
	}
	entry := e.lastEntry(t)
	if entry.Level != audit.LevelError {
		t.Fatalf("level = %s, want error", entry.Level)
	}
	if entry.ErrorDetail == "" {
		t.Fatal("error detail missing from audit entry")
	}
}

func TestNilCollaboratorsAnswerUnavailable(t *testing.T) {
	e := newTestEnv(t, nil)
	cases := []struct {
		action contract.Action
		want   string
	}{
		{contract.ActionProjectList, "project directory unavailable"},
		{contract.ActionInbox, "mailbox unavailable"},
		{contract.ActionTodoList, "task source unavailable"},
	}
	for _, tc := range cases {
		resp := e.d.Dispatch(context.Background(), req(tc.action, nil))
		if !resp.OK() || resp.Message != tc.want {
			t.Errorf("%s: resp = %+v, want %q", tc.action, resp, tc.want)
		}
	}
}

func TestTodoToDDSCreatesProposal(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) {
		d.Tasks = &fakeTasks{todos: []Todo{{ID: "T-1", Project: "demo", Title: "from backlog"}}}
	})
	resp := e.d.Dispatch(context.Background(), req(contract.ActionTodoToDDS, map[string]any{"todo_id": "T-1"}))
	if !resp.OK() {
		t.Fatalf("todo_to_dds failed: %s", resp.Message)
	}
	proposed, err := e.proposals.ListByStatus(proposal.StatusProposed)
	if err != nil {
		t.Fatal(err)
	}
	if len(proposed) != 1 || proposed[0].Base().Title != "from backlog" {
		t.Fatalf("proposals = %+v", proposed)
	}

	resp = e.d.Dispatch(context.Background(), req(contract.ActionTodoToDDS, map[string]any{"todo_id": "T-9"}))
	if resp.OK() {
		t.Fatal("unknown todo id must fail")
	}
}

func TestExecuteSurfacesCategoryTag(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) {
		d.Executor = &fakeExecutor{err: fmt.Errorf("[dds_error] DDS-x: already executed")}
	})
	resp := e.d.Dispatch(context.Background(), req(contract.ActionExecute, map[string]any{"dds_id": "DDS-x"}))
	if resp.OK() {
		t.Fatal("executor failure must surface")
	}
	if !strings.Contains(resp.Message, "[dds_error]") {
		t.Fatalf("message lost the category tag: %q", resp.Message)
	}
}

func TestEveryRequestLeavesOneAuditEntry(t *testing.T) {
	e := newTestEnv(t, nil)
	requests := []contract.Request{
		req("bogus", nil),
		contract.NewRequest(contract.ActionSystemStatus, nil, "nobody", "x"),
		req(contract.ActionDDSApprove, nil),
		req(contract.ActionSystemStatus, nil),
	}
	for _, r := range requests {
		e.d.Dispatch(context.Background(), r)
	}
	if got := len(e.entries(t)); got != len(requests) {
		t.Fatalf("audit entries = %d, want %d", got, len(requests))
	}
}

func TestAuditChainStaysVerifiable(t *testing.T) {
	e := newTestEnv(t, nil)
	for i := 0; i < 4; i++ {
		e.d.Dispatch(context.Background(), req(contract.ActionSystemStatus, nil))
	}
	res := audit.Verify(filepath.Join(e.cfg.DataDir, "audit.jsonl"))
	if !res.Valid {
		t.Fatalf("audit chain broken: %+v", res)
	}
}
