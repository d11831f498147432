package reactive

import (
	"fmt"
	"strings"

	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

// Outcome names the three distinct results of one reactive pass.
type Outcome string

const (
	OutcomeNothing    Outcome = "nothing_to_do"
	OutcomeDuplicate  Outcome = "duplicate_suppressed"
	OutcomeFixCreated Outcome = "fix_created"
)

// Worker orchestrates one failure-to-fix pass: find a qualifying
// failure, suppress duplicates, draft and persist one fix.
type Worker struct {
	proposals *proposal.Store
	analyzer  *Analyzer
	generator *Generator
}

// NewWorker wires a worker over the proposal store and report log.
func NewWorker(proposals *proposal.Store, reports *report.Log) *Worker {
	return &Worker{
		proposals: proposals,
		analyzer:  NewAnalyzer(reports),
		generator: NewGenerator(),
	}
}

// RunOnce performs a single pass. On OutcomeFixCreated the returned id
// names the new proposal; otherwise it is empty.
func (w *Worker) RunOnce() (Outcome, string, error) {
	failure, ok, err := w.analyzer.LatestFailure()
	if err != nil {
		return OutcomeNothing, "", err
	}
	if !ok {
		return OutcomeNothing, "", nil
	}

	dup, err := w.hasExistingFix(failure.DDSID)
	if err != nil {
		return OutcomeNothing, "", err
	}
	if dup {
		w.analyzer.MarkProcessed(failure)
		return OutcomeDuplicate, "", nil
	}

	p, err := w.proposals.Get(failure.DDSID)
	if err != nil {
		return OutcomeNothing, "", fmt.Errorf("load failed proposal: %w", err)
	}
	var orig *proposal.Executable
	switch v := p.(type) {
	case *proposal.Fix:
		orig = &v.Executable
	case *proposal.Executable:
		orig = v
	default:
		// Not executable: nothing a fix could act on.
		w.analyzer.MarkProcessed(failure)
		return OutcomeNothing, "", nil
	}

	fix := w.generator.GenerateFix(orig, failure)
	if err := w.proposals.Add(fix); err != nil {
		return OutcomeNothing, "", fmt.Errorf("persist fix: %w", err)
	}
	w.analyzer.MarkProcessed(failure)
	return OutcomeFixCreated, fix.ID, nil
}

// hasExistingFix checks the structured back-reference first, then falls
// back to a title substring match to catch fixes written before the
// structured field existed.
func (w *Worker) hasExistingFix(sourceID string) (bool, error) {
	all, err := w.proposals.List()
	if err != nil {
		return false, err
	}
	for _, p := range all {
		if f, ok := p.(*proposal.Fix); ok && f.SourceID == sourceID {
			return true, nil
		}
		title := p.Base().Title
		if strings.HasPrefix(title, "Fix for ") && strings.Contains(title, sourceID) {
			return true, nil
		}
	}
	return false, nil
}
