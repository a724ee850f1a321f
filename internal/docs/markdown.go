package docs

import (
	"fmt"
	"strings"
)

// Markdown renders doc as a readable document. Empty sections are skipped.
func Markdown(doc *FinalDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.ProjectName)
	if doc.Description != "" {
		b.WriteString(strings.TrimSpace(doc.Description))
		b.WriteString("\n\n")
	}
	if doc.Architecture != "" {
		b.WriteString("## Architecture\n\n")
		b.WriteString(strings.TrimSpace(doc.Architecture))
		b.WriteString("\n\n")
	}
	if len(doc.FileAnalyses) > 0 {
		b.WriteString("## Key files\n\n")
		for _, fa := range doc.FileAnalyses {
			fmt.Fprintf(&b, "### `%s`", fa.Path)
			if fa.Language != "" {
				fmt.Fprintf(&b, " (%s)", fa.Language)
			}
			b.WriteString("\n\n")
			b.WriteString(strings.TrimSpace(fa.Description))
			b.WriteString("\n\n")
			if len(fa.Dependencies) > 0 {
				fmt.Fprintf(&b, "Depends on: %s\n\n", strings.Join(fa.Dependencies, ", "))
			}
		}
	}
	if len(doc.Dependencies) > 0 {
		b.WriteString("## Dependencies\n\n")
		for _, d := range doc.Dependencies {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	if doc.SetupInstructions != "" {
		b.WriteString("## Setup\n\n")
		b.WriteString(doc.SetupInstructions)
		b.WriteString("\n\n")
	}
	if doc.Degraded {
		b.WriteString("_Some stages failed; this document is incomplete._\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
