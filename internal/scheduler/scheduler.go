// Package scheduler drains approved proposals sequentially. There is
// exactly one execution at a time, in ascending id order (creation
// order), and the batch stops at the first failure: proposals after a
// failed one are not attempted.
package scheduler

import (
	"context"

	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

// Executor runs a single proposal. Satisfied by *engine.Engine.
type Executor interface {
	Execute(ctx context.Context, id string) (report.Report, error)
}

// Scheduler walks the approved queue through an Executor.
type Scheduler struct {
	proposals *proposal.Store
	executor  Executor
}

// New returns a scheduler over the given store and executor.
func New(store *proposal.Store, executor Executor) *Scheduler {
	return &Scheduler{proposals: store, executor: executor}
}

// Result is the outcome of one attempted proposal.
type Result struct {
	ID     string
	Status string
	Notes  string
}

// Summary describes one batch run.
type Summary struct {
	Results  []Result
	FailedID string
	Skipped  []string
}

// Stopped reports whether the batch halted early on a failure.
func (s Summary) Stopped() bool { return s.FailedID != "" }

// ExecutedCount is the number of proposals that completed successfully.
func (s Summary) ExecutedCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == report.StatusSuccess {
			n++
		}
	}
	return n
}

// Run executes every approved proposal in creation order, stopping at
// the first failure. The error return covers batch-level faults only
// (store unreadable); per-proposal failures live in the summary.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	approved, err := s.proposals.ListByStatus(proposal.StatusApproved)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for i, p := range approved {
		id := p.Base().ID
		rep, execErr := s.executor.Execute(ctx, id)
		res := Result{ID: id, Status: rep.Status, Notes: rep.Notes}
		if execErr != nil {
			res.Status = report.StatusFailed
			if res.Notes == "" {
				res.Notes = execErr.Error()
			}
		}
		sum.Results = append(sum.Results, res)
		if res.Status != report.StatusSuccess {
			sum.FailedID = id
			for _, rest := range approved[i+1:] {
				sum.Skipped = append(sum.Skipped, rest.Base().ID)
			}
			break
		}
	}
	return sum, nil
}
