package orchestrate

import (
	"fmt"
	"strings"
	"time"

	"chipwright/internal/plan"
)

// Compose renders the integrated design: every verified module in
// dependency order, the top module last, under a generated header.
// Callers only invoke it once every node in the graph has verified.
func Compose(graph *plan.Graph, mc *ModuleContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// Integrated design, top module: %s\n", graph.Top())
	fmt.Fprintf(&b, "// Generated by chipwright on %s\n", time.Now().Format("2006-01-02 15:04:05"))

	for _, name := range graph.TopologicalOrder() {
		e, ok := mc.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n// ---- %s ----\n", name)
		b.WriteString(strings.TrimSpace(e.Design))
		b.WriteString("\n")
	}

	return b.String()
}
