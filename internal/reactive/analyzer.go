// Package reactive turns qualifying execution failures into fresh fix
// proposals. Nothing here retries anything: remediation is always a
// new, separately-approved proposal.
package reactive

import (
	"strings"

	"github.com/ppiankov/ddsgate/internal/report"
)

// eligibleActions are the action types remediation applies to. A failed
// noop or touch_file has nothing a code fix could repair.
var eligibleActions = map[string]bool{
	"code_change": true,
	"code_fix":    true,
}

// unfixableSubstrings mark environment and infrastructure failures. No
// proposal edit can repair these, so the analyzer filters them before a
// fix is ever drafted.
var unfixableSubstrings = []string{
	"timeout",
	"timed out",
	"rate limit",
	"connection refused",
	"executable file not found",
	"no such tool",
	"service unavailable",
	"temporarily unavailable",
}

// Unfixable reports whether the failure notes name an environment
// problem.
func Unfixable(notes string) bool {
	lower := strings.ToLower(notes)
	for _, s := range unfixableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Analyzer scans the report log for the most recent remediable failure.
// The processed set is in-memory: within one analyzer lifetime a given
// failure is surfaced at most once.
type Analyzer struct {
	reports   *report.Log
	processed map[string]bool
}

// NewAnalyzer returns an analyzer over the report log.
func NewAnalyzer(reports *report.Log) *Analyzer {
	return &Analyzer{reports: reports, processed: map[string]bool{}}
}

// LatestFailure walks the report log backwards from the most recent
// entry and returns the first failed, eligible, unprocessed, fixable
// report. ok is false when nothing qualifies.
func (a *Analyzer) LatestFailure() (report.Report, bool, error) {
	all, err := a.reports.All()
	if err != nil {
		return report.Report{}, false, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		if r.Success() || !eligibleActions[r.Action] {
			continue
		}
		if a.processed[failureKey(r)] {
			continue
		}
		if Unfixable(r.Notes) {
			continue
		}
		return r, true, nil
	}
	return report.Report{}, false, nil
}

// MarkProcessed records that r has been handled, so a later pass never
// re-drafts a fix for the same failure.
func (a *Analyzer) MarkProcessed(r report.Report) {
	a.processed[failureKey(r)] = true
}

func failureKey(r report.Report) string {
	return r.DDSID + "|" + r.Timestamp
}
