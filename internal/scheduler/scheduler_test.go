package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

// scriptedExecutor fails the ids listed in fail, succeeds otherwise,
// and records attempt order.
type scriptedExecutor struct {
	fail     map[string]bool
	attempts []string
}

func (s *scriptedExecutor) Execute(_ context.Context, id string) (report.Report, error) {
	s.attempts = append(s.attempts, id)
	if s.fail[id] {
		return report.Report{DDSID: id, Status: report.StatusFailed, Notes: "missing instructions"}, nil
	}
	return report.Report{DDSID: id, Status: report.StatusSuccess}, nil
}

func seedApproved(t *testing.T, store *proposal.Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := &proposal.Executable{
			Meta: proposal.Meta{ID: proposal.NewID(base.Add(time.Duration(i) * time.Second)), Project: "demo", Title: "batch"},
			Spec: proposal.ExecSpec{Version: proposal.SupportedVersion, Kind: proposal.KindNoop},
		}
		if err := store.Add(p); err != nil {
			t.Fatal(err)
		}
		if err := store.Approve(p.ID); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}
	return ids
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	store := proposal.NewStore(filepath.Join(t.TempDir(), "dds.json"))
	ids := seedApproved(t, store, 5)

	ex := &scriptedExecutor{fail: map[string]bool{ids[2]: true}}
	sum, err := New(store, ex).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(ex.attempts) != 3 {
		t.Fatalf("attempts = %v, want first three only", ex.attempts)
	}
	if sum.ExecutedCount() != 2 {
		t.Fatalf("executed = %d, want 2", sum.ExecutedCount())
	}
	if sum.FailedID != ids[2] {
		t.Fatalf("failed id = %s, want %s", sum.FailedID, ids[2])
	}
	if len(sum.Skipped) != 2 || sum.Skipped[0] != ids[3] || sum.Skipped[1] != ids[4] {
		t.Fatalf("skipped = %v", sum.Skipped)
	}
}

func TestRunAttemptsInCreationOrder(t *testing.T) {
	store := proposal.NewStore(filepath.Join(t.TempDir(), "dds.json"))
	ids := seedApproved(t, store, 3)

	ex := &scriptedExecutor{}
	sum, err := New(store, ex).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, id := range ids {
		if ex.attempts[i] != id {
			t.Fatalf("attempt order %v, want %v", ex.attempts, ids)
		}
	}
	if sum.Stopped() {
		t.Fatalf("clean batch reported a failure: %+v", sum)
	}
}

func TestRunEmptyQueue(t *testing.T) {
	store := proposal.NewStore(filepath.Join(t.TempDir(), "dds.json"))
	sum, err := New(store, &scriptedExecutor{}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Results) != 0 || sum.Stopped() {
		t.Fatalf("summary = %+v, want empty", sum)
	}
}
