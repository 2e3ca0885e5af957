package orchestrate

import (
	"sync"

	"chipwright/internal/plan"
	"chipwright/internal/verify"
)

// Entry is one verified module held in the context: its plan node plus
// the artifacts that passed verification.
type Entry struct {
	Node   plan.Node
	Design string
	Bench  string
}

// ModuleContext is the accumulated set of verified modules visible to
// modules still under generation. It only grows: exactly one Add per
// node, immediately after that node verifies. Safe for concurrent
// reads by sibling branches.
type ModuleContext struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewModuleContext returns an empty context.
func NewModuleContext() *ModuleContext {
	return &ModuleContext{entries: make(map[string]Entry)}
}

// Add records a verified module. The first write for a name wins;
// repeat writes are ignored, keeping the context append-only.
func (c *ModuleContext) Add(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[e.Node.Name]; exists {
		return
	}
	c.entries[e.Node.Name] = e
	c.order = append(c.order, e.Node.Name)
}

// Get looks up a verified module by name.
func (c *ModuleContext) Get(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Len returns how many modules have verified.
func (c *ModuleContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Names returns the verified module names in verification order.
func (c *ModuleContext) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// DependenciesFor snapshots the verified direct dependencies of node,
// deduplicated, in declaration order. The snapshot is what the module
// verifier feeds into generation prompts.
func (c *ModuleContext) DependenciesFor(node plan.Node) []verify.Dependency {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool, len(node.DependsOn))
	deps := make([]verify.Dependency, 0, len(node.DependsOn))
	for _, name := range node.DependsOn {
		if seen[name] {
			continue
		}
		seen[name] = true
		if e, ok := c.entries[name]; ok {
			deps = append(deps, verify.Dependency{Node: e.Node, Design: e.Design})
		}
	}
	return deps
}
