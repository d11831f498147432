package engine

import (
	"fmt"
	"path"

	"github.com/ppiankov/ddsgate/internal/proposal"
)

// noRefactorThreshold is the heuristic file-count ceiling applied when
// a proposal bans refactors. It is a blast-radius bound, not a semantic
// check.
const noRefactorThreshold = 3

// dependencyManifests are filenames whose modification counts as adding
// or changing external dependencies.
var dependencyManifests = map[string]bool{
	"go.mod":            true,
	"go.sum":            true,
	"package.json":      true,
	"package-lock.json": true,
	"requirements.txt":  true,
	"Pipfile":           true,
	"pyproject.toml":    true,
	"Cargo.toml":        true,
	"Gemfile":           true,
}

// ValidateConstraints checks the observed diff against the declared
// constraints. It judges what actually changed, never what the tool
// intended.
func ValidateConstraints(c *proposal.Constraints, d Diff) error {
	if c == nil {
		return nil
	}
	if c.MaxFilesChanged > 0 && d.ChangedCount() > c.MaxFilesChanged {
		return fmt.Errorf("constraint violation: %d files changed, maximum is %d", d.ChangedCount(), c.MaxFilesChanged)
	}
	if c.NoNewDependencies {
		for _, p := range append(append([]string{}, d.Created...), d.Modified...) {
			if dependencyManifests[path.Base(p)] {
				return fmt.Errorf("constraint violation: dependency manifest %s changed with no_new_dependencies set", p)
			}
		}
	}
	if c.NoRefactor && d.ChangedCount() > noRefactorThreshold {
		return fmt.Errorf("constraint violation: %d files changed with no_refactor set (threshold %d)", d.ChangedCount(), noRefactorThreshold)
	}
	return nil
}
