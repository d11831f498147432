package reactive

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

const (
	// maxErrorLen bounds the sanitized error text carried into a fix.
	maxErrorLen = 500
	// fixMaxFilesCeiling is the hard upper bound on a fix's file budget.
	fixMaxFilesCeiling = 3
)

// Generator drafts fix proposals. The transform is pure and
// deterministic: same original, failure, and clock always produce the
// same fix.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a generator on the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// GenerateFix builds a fix proposal for a failed executable. The fix is
// always status proposed, its constraints are strictly tighter than the
// original's, and it carries a structured back-reference to the failed
// id.
func (g *Generator) GenerateFix(orig *proposal.Executable, failure report.Report) *proposal.Fix {
	errText := SanitizeError(failure.Notes)
	now := g.now()

	maxFiles := fixMaxFilesCeiling
	if c := orig.Spec.Constraints; c != nil && c.MaxFilesChanged > 0 && c.MaxFilesChanged < maxFiles {
		maxFiles = c.MaxFilesChanged
	}

	return &proposal.Fix{
		Executable: proposal.Executable{
			Meta: proposal.Meta{
				ID:          proposal.NewFixID(now),
				Project:     orig.Project,
				Title:       fmt.Sprintf("Fix for %s: %s", orig.ID, orig.Title),
				Description: fmt.Sprintf("Automatically drafted repair for the failed execution of %s.", orig.ID),
				CreatedAt:   now.UTC().Format(time.RFC3339Nano),
				Status:      proposal.StatusProposed,
			},
			Spec: proposal.ExecSpec{
				Version: proposal.SupportedVersion,
				Kind:    proposal.KindCodeFix,
				Goal:    fmt.Sprintf("Repair the failure of %s without widening its scope", orig.ID),
				Instructions: []string{
					fmt.Sprintf("Review the recorded failure: %s", errText),
					"Identify the smallest change that addresses the error.",
					"Apply the change only within the allowed paths.",
					"Do not introduce new dependencies and do not refactor unrelated code.",
				},
				Tool:         orig.Spec.Tool,
				AllowedPaths: append([]string(nil), orig.Spec.AllowedPaths...),
				Constraints: &proposal.Constraints{
					MaxFilesChanged:   maxFiles,
					NoNewDependencies: true,
					NoRefactor:        true,
				},
			},
		},
		SourceID: orig.ID,
		ErrorContext: proposal.ErrorContext{
			OriginalID:   orig.ID,
			ErrorMessage: errText,
			FailedAt:     failure.Timestamp,
		},
	}
}

// SanitizeError normalizes failure text for embedding in a fix: NULs
// stripped, CRLF folded to LF, length capped.
func SanitizeError(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)
	if len(s) > maxErrorLen {
		s = s[:maxErrorLen] + "..."
	}
	return s
}
