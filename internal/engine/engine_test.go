package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/ddsgate/internal/config"
	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

// fakeRunner stands in for the tool subprocess. It can drop files into
// the scoped workspace before returning, to simulate tool edits.
type fakeRunner struct {
	writes   map[string]string
	exitCode int
	stderr   string
	err      error
	called   bool
}

func (f *fakeRunner) Run(_ context.Context, dir, _ string, _ []string) (ToolResult, error) {
	f.called = true
	for rel, content := range f.writes {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return ToolResult{}, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return ToolResult{}, err
		}
	}
	return ToolResult{ExitCode: f.exitCode, Stderr: f.stderr}, f.err
}

type env struct {
	eng       *Engine
	proposals *proposal.Store
	reports   *report.Log
	cfg       *config.Config
}

func testEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	projects := filepath.Join(dir, "projects")
	writeFile(t, filepath.Join(projects, "demo", "src", "main.go"), "package main\n")
	writeFile(t, filepath.Join(projects, "demo", "go.mod"), "module demo\n")

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "state")
	cfg.SearchRoots = []string{projects}

	store := proposal.NewStore(cfg.ProposalsPath())
	reports := report.NewLog(cfg.ReportsPath())
	return &env{
		eng:       New(store, reports, cfg),
		proposals: store,
		reports:   reports,
		cfg:       cfg,
	}
}

func (e *env) addApproved(t *testing.T, p proposal.Proposal) string {
	t.Helper()
	if err := e.proposals.Add(p); err != nil {
		t.Fatal(err)
	}
	id := p.Base().ID
	if err := e.proposals.Approve(id); err != nil {
		t.Fatal(err)
	}
	return id
}

func codeChange(maxFiles int) *proposal.Executable {
	return &proposal.Executable{
		Meta: proposal.Meta{Project: "demo", Title: "change"},
		Spec: proposal.ExecSpec{
			Version:      proposal.SupportedVersion,
			Kind:         proposal.KindCodeChange,
			Goal:         "adjust the source",
			Instructions: []string{"edit src/main.go"},
			Tool:         "aider",
			AllowedPaths: []string{"src"},
			Constraints:  &proposal.Constraints{MaxFilesChanged: maxFiles},
		},
	}
}

func wantCategory(t *testing.T, err error, cat Category) {
	t.Helper()
	var engErr *Error
	if !errors.As(err, &engErr) {
		t.Fatalf("err = %v, want *engine.Error", err)
	}
	if engErr.Category != cat {
		t.Fatalf("category = %s, want %s (err: %v)", engErr.Category, cat, err)
	}
}

func TestExecuteRejectsAfterSuccess(t *testing.T) {
	e := testEnv(t)
	id := e.addApproved(t, &proposal.Executable{
		Meta: proposal.Meta{Project: "demo", Title: "noop"},
		Spec: proposal.ExecSpec{Version: proposal.SupportedVersion, Kind: proposal.KindNoop},
	})
	if _, err := e.eng.Execute(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryDDS)
	if !strings.Contains(err.Error(), "already executed") {
		t.Fatalf("err = %v", err)
	}
}

func TestExecuteRequiresApproval(t *testing.T) {
	e := testEnv(t)
	p := codeChange(3)
	if err := e.proposals.Add(p); err != nil {
		t.Fatal(err)
	}
	_, err := e.eng.Execute(context.Background(), p.ID)
	wantCategory(t, err, CategoryDDS)

	_, err = e.eng.Execute(context.Background(), "DDS-00000000000000.000000000")
	wantCategory(t, err, CategoryDDS)
}

func TestNoopExecution(t *testing.T) {
	e := testEnv(t)
	id := e.addApproved(t, &proposal.Executable{
		Meta: proposal.Meta{Project: "demo", Title: "noop"},
		Spec: proposal.ExecSpec{Version: proposal.SupportedVersion, Kind: proposal.KindNoop},
	})
	rep, err := e.eng.Execute(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Success() {
		t.Fatalf("report = %+v", rep)
	}
	marker := filepath.Join(e.cfg.SandboxPath(), "demo", id+".noop")
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("marker artifact missing: %v", err)
	}

	got, err := e.proposals.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	ex := got.(*proposal.Executable)
	if ex.Status != proposal.StatusExecuted {
		t.Fatalf("status = %s, want executed", ex.Status)
	}
	if ex.LastExecution == nil || ex.LastExecution.Status != report.StatusSuccess {
		t.Fatalf("last execution = %+v", ex.LastExecution)
	}
}

func touchFile(path string, content string) *proposal.Executable {
	return &proposal.Executable{
		Meta: proposal.Meta{Project: "demo", Title: "touch"},
		Spec: proposal.ExecSpec{
			Version:      proposal.SupportedVersion,
			Kind:         proposal.KindTouchFile,
			Path:         path,
			Content:      &content,
			AllowedPaths: []string{"notes"},
		},
	}
}

func TestTouchFileRejectsTraversal(t *testing.T) {
	e := testEnv(t)
	id := e.addApproved(t, touchFile("../escape.txt", ""))
	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryDDS)

	// The failure still left a report and a failed status.
	rep, ok, err := e.reports.LatestFor(id)
	if err != nil || !ok {
		t.Fatalf("missing report: ok=%v err=%v", ok, err)
	}
	if rep.Success() {
		t.Fatalf("report = %+v, want failed", rep)
	}
	got, _ := e.proposals.Get(id)
	if got.Base().Status != proposal.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Base().Status)
	}
}

func TestTouchFileWritesContent(t *testing.T) {
	e := testEnv(t)
	content := "hello\n"
	id := e.addApproved(t, touchFile("notes/hello.txt", content))
	rep, err := e.eng.Execute(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Success() {
		t.Fatalf("report = %+v", rep)
	}
	data, err := os.ReadFile(filepath.Join(e.cfg.SandboxPath(), "demo", "notes", "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != content {
		t.Fatalf("content = %q", data)
	}
}

func TestTouchFileRequiresAllowedPaths(t *testing.T) {
	e := testEnv(t)
	p := touchFile("anywhere/at-all.txt", "x")
	p.Spec.AllowedPaths = nil
	id := e.addApproved(t, p)

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryDDS)
	if !strings.Contains(err.Error(), "missing allowed paths") {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(e.cfg.SandboxPath(), "demo", "anywhere", "at-all.txt")); !os.IsNotExist(statErr) {
		t.Fatalf("file written despite missing allowed paths: %v", statErr)
	}
}

func TestTouchFileRequiresContent(t *testing.T) {
	e := testEnv(t)
	p := touchFile("notes/empty.txt", "")
	p.Spec.Content = nil
	id := e.addApproved(t, p)

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryDDS)
	if !strings.Contains(err.Error(), "missing content") {
		t.Fatalf("err = %v", err)
	}
}

func TestTouchFileRejectsPathOutsideAllowed(t *testing.T) {
	e := testEnv(t)
	id := e.addApproved(t, touchFile("other/file.txt", "x"))

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryDDS)
	if !strings.Contains(err.Error(), "outside the allowed paths") {
		t.Fatalf("err = %v", err)
	}
}

func TestCodeChangeValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*proposal.Executable)
		want   string
	}{
		{"bad version", func(p *proposal.Executable) { p.Spec.Version = 1 }, "unsupported schema version"},
		{"no tool", func(p *proposal.Executable) { p.Spec.Tool = "" }, "missing tool"},
		{"unknown tool", func(p *proposal.Executable) { p.Spec.Tool = "cursor" }, "unsupported tool"},
		{"no goal", func(p *proposal.Executable) { p.Spec.Goal = "" }, "missing goal"},
		{"no instructions", func(p *proposal.Executable) { p.Spec.Instructions = nil }, "missing instructions"},
		{"no allowed paths", func(p *proposal.Executable) { p.Spec.AllowedPaths = nil }, "missing allowed paths"},
		{"no constraints", func(p *proposal.Executable) { p.Spec.Constraints = nil }, "missing constraints"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := testEnv(t)
			runner := &fakeRunner{}
			e.eng.WithRunner(runner)
			p := codeChange(3)
			tc.mutate(p)
			id := e.addApproved(t, p)

			_, err := e.eng.Execute(context.Background(), id)
			wantCategory(t, err, CategoryDDS)
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
			if runner.called {
				t.Fatal("tool ran despite failed validation")
			}
		})
	}
}

func TestCodeChangeEscapeRejectedBeforeTool(t *testing.T) {
	e := testEnv(t)
	runner := &fakeRunner{}
	e.eng.WithRunner(runner)
	p := codeChange(3)
	p.Spec.AllowedPaths = []string{"../outside"}
	id := e.addApproved(t, p)

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryDDS)
	if runner.called {
		t.Fatal("tool ran despite sandbox escape")
	}
}

func TestCodeChangeSuccess(t *testing.T) {
	e := testEnv(t)
	runner := &fakeRunner{writes: map[string]string{"src/main.go": "package main\n\nfunc main() {}\n"}}
	e.eng.WithRunner(runner)
	id := e.addApproved(t, codeChange(3))

	rep, err := e.eng.Execute(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Success() || !strings.Contains(rep.Notes, "src/main.go") {
		t.Fatalf("report = %+v", rep)
	}
}

func TestCodeChangeNoChangesIsSuccess(t *testing.T) {
	e := testEnv(t)
	e.eng.WithRunner(&fakeRunner{})
	id := e.addApproved(t, codeChange(3))

	rep, err := e.eng.Execute(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Success() || rep.Notes != "no changes" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestCodeChangeConstraintViolation(t *testing.T) {
	e := testEnv(t)
	runner := &fakeRunner{writes: map[string]string{
		"src/a.go": "a",
		"src/b.go": "b",
	}}
	e.eng.WithRunner(runner)
	id := e.addApproved(t, codeChange(1))

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryExec)
	if !strings.Contains(err.Error(), "constraint violation") {
		t.Fatalf("err = %v", err)
	}
}

func TestCodeChangeDependencyConstraint(t *testing.T) {
	e := testEnv(t)
	runner := &fakeRunner{writes: map[string]string{"src/go.mod": "module x\n"}}
	e.eng.WithRunner(runner)
	p := codeChange(3)
	p.Spec.Constraints.NoNewDependencies = true
	id := e.addApproved(t, p)

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryExec)
	if !strings.Contains(err.Error(), "dependency manifest") {
		t.Fatalf("err = %v", err)
	}
}

func TestNoRefactorIgnoresDeletions(t *testing.T) {
	c := &proposal.Constraints{NoRefactor: true}
	d := Diff{Modified: []string{"a.go", "b.go"}, Deleted: []string{"c.go", "d.go"}}
	if err := ValidateConstraints(c, d); err != nil {
		t.Fatalf("deletions counted against no_refactor: %v", err)
	}
	d.Created = []string{"e.go", "f.go"}
	if err := ValidateConstraints(c, d); err == nil {
		t.Fatal("expected violation with 4 changed files")
	}
}

func TestCodeChangeTimeoutIsEnvError(t *testing.T) {
	e := testEnv(t)
	e.eng.WithRunner(&fakeRunner{err: ErrToolTimeout})
	id := e.addApproved(t, codeChange(3))

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryEnv)
}

func TestCodeChangeMissingToolIsEnvError(t *testing.T) {
	e := testEnv(t)
	e.eng.WithRunner(&fakeRunner{err: errors.New(`exec: "aider": executable file not found in $PATH`)})
	id := e.addApproved(t, codeChange(3))

	_, err := e.eng.Execute(context.Background(), id)
	wantCategory(t, err, CategoryEnv)
}

func TestBuildPromptDeterministic(t *testing.T) {
	spec := codeChange(2).Spec
	spec.Constraints.NoNewDependencies = true
	spec.Constraints.NoRefactor = true

	a := BuildPrompt(spec)
	b := BuildPrompt(spec)
	if a != b {
		t.Fatal("prompt is not deterministic")
	}
	for _, want := range []string{"GOAL:", "INSTRUCTIONS:", "CONSTRAINTS:", "RULES:", "Do not commit changes."} {
		if !strings.Contains(a, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
