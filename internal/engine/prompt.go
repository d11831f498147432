package engine

import (
	"fmt"
	"strings"

	"github.com/ppiankov/ddsgate/internal/proposal"
)

// BuildPrompt renders the instruction document handed to the external
// tool. The output is deterministic for a given spec: same goal,
// instructions, and constraints always produce the same bytes.
func BuildPrompt(spec proposal.ExecSpec) string {
	var b strings.Builder

	b.WriteString("GOAL:\n")
	b.WriteString(spec.Goal)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	for i, ins := range spec.Instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ins)
	}

	b.WriteString("\nCONSTRAINTS:\n")
	if c := spec.Constraints; c != nil {
		if c.MaxFilesChanged > 0 {
			fmt.Fprintf(&b, "- Change at most %d file(s).\n", c.MaxFilesChanged)
		}
		if c.NoNewDependencies {
			b.WriteString("- Do not add new external dependencies.\n")
		}
		if c.NoRefactor {
			b.WriteString("- Do not refactor existing code beyond the stated goal.\n")
		}
	}

	b.WriteString("\nRULES:\n")
	b.WriteString("- Only modify files in the allowed paths: ")
	b.WriteString(strings.Join(spec.AllowedPaths, ", "))
	b.WriteString("\n")
	b.WriteString("- Do not commit changes.\n")
	b.WriteString("- Stop after completing the instructions.\n")

	return b.String()
}
