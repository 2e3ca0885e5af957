// Package plan turns a design request into a validated dependency graph of
// submodule specifications. Model output is untrusted: it is admitted into
// the typed graph only after schema and invariant checks, and rejected with
// a typed PlanningError otherwise.
package plan

import (
	"sort"
	"strings"

	"chipwright/internal/hdl"
)

// Request is one design request: a free-text prompt plus optional
// interface hints. Immutable once accepted.
type Request struct {
	Prompt string
	Hints  []string
}

// Node specifies one submodule. Created by the Builder and never mutated.
type Node struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Ports       []hdl.Port `json:"ports"`
	DependsOn   []string   `json:"depends_on"`
}

// MaxModules bounds how many submodules a decomposition may propose.
const MaxModules = 16

// Graph is a validated module dependency graph: every dependency resolves,
// the relation is acyclic, and exactly one sink (the top module) exists.
// A Graph in hand therefore never needs re-validation.
type Graph struct {
	nodes      map[string]Node
	order      []string // topological, dependencies first, name-sorted ties
	top        string
	dependents map[string][]string // direct dependents, sorted
}

// NewGraph validates nodes and builds the graph.
func NewGraph(nodes []Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, planErrorf(UnparsableDecomposition, "decomposition contained no modules")
	}
	if len(nodes) > MaxModules {
		return nil, planErrorf(UnparsableDecomposition, "decomposition proposed %d modules (limit %d)", len(nodes), MaxModules)
	}

	byName := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if !hdl.ValidIdentifier(n.Name) {
			return nil, planErrorf(UnparsableDecomposition, "invalid module name %q", n.Name)
		}
		if _, dup := byName[n.Name]; dup {
			return nil, planErrorf(UnparsableDecomposition, "duplicate module name %q", n.Name)
		}
		if strings.TrimSpace(n.Description) == "" {
			return nil, planErrorf(UnparsableDecomposition, "module %q has no description", n.Name)
		}
		if len(n.Ports) == 0 {
			return nil, planErrorf(UnparsableDecomposition, "module %q declares no ports", n.Name)
		}
		seenPorts := make(map[string]bool, len(n.Ports))
		for _, p := range n.Ports {
			if !hdl.ValidIdentifier(p.Name) {
				return nil, planErrorf(UnparsableDecomposition, "module %q: invalid port name %q", n.Name, p.Name)
			}
			if seenPorts[p.Name] {
				return nil, planErrorf(UnparsableDecomposition, "module %q: duplicate port %q", n.Name, p.Name)
			}
			seenPorts[p.Name] = true
			switch p.Direction {
			case hdl.Input, hdl.Output, hdl.Inout:
			default:
				return nil, planErrorf(UnparsableDecomposition, "module %q: port %q has unknown direction %q", n.Name, p.Name, p.Direction)
			}
			if p.Width < 0 || p.Width > 4096 {
				return nil, planErrorf(UnparsableDecomposition, "module %q: port %q has width %d out of range", n.Name, p.Name, p.Width)
			}
		}
		byName[n.Name] = n
	}

	// Dependency resolution. DependsOn may repeat a name (a module can
	// instantiate the same submodule twice); edges are deduplicated.
	dependents := make(map[string][]string, len(byName))
	indeg := make(map[string]int, len(byName))
	for name := range byName {
		indeg[name] = 0
	}
	for _, n := range byName {
		seen := make(map[string]bool, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if dep == n.Name {
				return nil, planErrorf(CyclicDependency, "module %q depends on itself", n.Name)
			}
			if _, ok := byName[dep]; !ok {
				return nil, planErrorf(UnparsableDecomposition, "module %q depends on unknown module %q", n.Name, dep)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			dependents[dep] = append(dependents[dep], n.Name)
			indeg[n.Name]++
		}
	}
	for dep := range dependents {
		sort.Strings(dependents[dep])
	}

	order, err := topoOrder(byName, dependents, indeg)
	if err != nil {
		return nil, err
	}

	// Exactly one sink: the module nothing depends on is the top.
	var sinks []string
	for name := range byName {
		if len(dependents[name]) == 0 {
			sinks = append(sinks, name)
		}
	}
	sort.Strings(sinks)
	if len(sinks) != 1 {
		return nil, planErrorf(AmbiguousTop, "expected exactly one top module, found %d candidates: %s", len(sinks), strings.Join(sinks, ", "))
	}

	return &Graph{
		nodes:      byName,
		order:      order,
		top:        sinks[0],
		dependents: dependents,
	}, nil
}

// topoOrder runs Kahn's algorithm. The ready set is kept name-sorted so
// independent siblings always appear in the same order.
func topoOrder(nodes map[string]Node, dependents map[string][]string, indeg map[string]int) ([]string, error) {
	remaining := make(map[string]int, len(indeg))
	var ready []string
	for name, d := range indeg {
		remaining[name] = d
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dep := range dependents[name] {
			remaining[dep]--
			if remaining[dep] == 0 {
				i := sort.SearchStrings(ready, dep)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = dep
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []string
		for name, d := range remaining {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, planErrorf(CyclicDependency, "dependency cycle among: %s", strings.Join(stuck, ", "))
	}
	return order, nil
}

// Len returns the number of modules.
func (g *Graph) Len() int { return len(g.nodes) }

// Top returns the name of the single sink module.
func (g *Graph) Top() string { return g.top }

// TopologicalOrder returns module names dependencies-first.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Node looks up a module by name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns all modules in topological order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Dependents returns the direct dependents of name, sorted.
func (g *Graph) Dependents(name string) []string {
	deps := g.dependents[name]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// TransitiveDependents returns every module that directly or indirectly
// depends on name, sorted. Used for fail-fast skip propagation.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := make(map[string]bool)
	queue := append([]string(nil), g.dependents[name]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, g.dependents[cur]...)
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
