package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"chipwright/internal/store"
)

// RunMarkdown renders a journaled run as a markdown document.
func RunMarkdown(rec *store.RunRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", rec.ID)
	fmt.Fprintf(&b, "**Prompt:** %s\n\n", rec.Prompt)
	fmt.Fprintf(&b, "**Status:** %s  \n", rec.Status)
	if rec.TopModule != "" {
		fmt.Fprintf(&b, "**Top module:** `%s`  \n", rec.TopModule)
	}
	fmt.Fprintf(&b, "**Duration:** %s  \n", rec.Duration)
	fmt.Fprintf(&b, "**Started:** %s\n\n", rec.CreatedAt)

	if len(rec.Failed) > 0 {
		fmt.Fprintf(&b, "**Failed:** %s  \n", strings.Join(rec.Failed, ", "))
	}
	if len(rec.Skipped) > 0 {
		fmt.Fprintf(&b, "**Skipped:** %s\n", strings.Join(rec.Skipped, ", "))
	}

	if len(rec.Modules) > 0 {
		b.WriteString("\n## Modules\n\n")
		b.WriteString("| Module | State | Attempts |\n|---|---|---|\n")
		for _, m := range rec.Modules {
			fmt.Fprintf(&b, "| `%s` | %s | %d |\n", m.Name, m.State, m.Attempts)
		}
	}

	for _, m := range rec.Modules {
		if m.State == "verified" || m.Diagnostic == "" {
			continue
		}
		fmt.Fprintf(&b, "\n### %s — last diagnostic\n\n```\n%s\n```\n", m.Name, strings.TrimSpace(m.Diagnostic))
	}

	if len(rec.Attempts) > 0 {
		b.WriteString("\n## Attempts\n\n")
		b.WriteString("| Module | # | Status | Category | Duration |\n|---|---|---|---|---|\n")
		for _, a := range rec.Attempts {
			category := a.Category
			if category == "" {
				category = "-"
			}
			fmt.Fprintf(&b, "| `%s` | %d | %s | %s | %s |\n",
				a.Module, a.Index, a.Status, category, a.Duration)
		}
	}

	return b.String()
}

// RunListMarkdown renders the run listing as markdown.
func RunListMarkdown(runs []store.RunSummary) string {
	var b strings.Builder
	b.WriteString("# Runs\n\n")
	if len(runs) == 0 {
		b.WriteString("No runs recorded yet.\n")
		return b.String()
	}
	b.WriteString("| ID | Status | Top | Prompt | When |\n|---|---|---|---|---|\n")
	for _, r := range runs {
		prompt := r.Prompt
		if len(prompt) > 48 {
			prompt = prompt[:48] + "..."
		}
		top := r.TopModule
		if top == "" {
			top = "-"
		}
		fmt.Fprintf(&b, "| `%.8s` | %s | `%s` | %s | %s |\n",
			r.ID, r.Status, top, prompt, r.CreatedAt)
	}
	return b.String()
}

// Render renders markdown for the terminal. On renderer failure the
// raw markdown comes back unstyled.
func Render(markdown string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
