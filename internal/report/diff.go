// Package report renders run progress and results for the terminal:
// colored diffs between repair attempts, styled status lines, and
// markdown run reports.
package report

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns a colored inline diff from before to after, with a
// one-line +/- stats header.
func Diff(label, before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	additions, deletions := diffStats(diffs)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: +%d -%d\n", label, additions, deletions)
	b.WriteString(dmp.DiffPrettyText(diffs))
	return b.String()
}

// diffStats counts added and removed lines.
func diffStats(diffs []diffmatchpatch.Diff) (additions, deletions int) {
	for _, d := range diffs {
		lines := strings.Count(d.Text, "\n")
		if !strings.HasSuffix(d.Text, "\n") && len(d.Text) > 0 {
			lines++
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += lines
		case diffmatchpatch.DiffDelete:
			deletions += lines
		}
	}
	return additions, deletions
}

// Changed reports whether the two texts differ at all, ignoring
// leading and trailing whitespace.
func Changed(before, after string) bool {
	return strings.TrimSpace(before) != strings.TrimSpace(after)
}
