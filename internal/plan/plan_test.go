package plan

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chipwright/internal/hdl"
)

// node builds a minimal valid Node for graph tests.
func node(name string, deps ...string) Node {
	return Node{
		Name:        name,
		Description: name + " behavior",
		Ports:       []hdl.Port{{Name: "y", Width: 1, Direction: hdl.Output}},
		DependsOn:   deps,
	}
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var perr *PlanningError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PlanningError, got %T: %v", err, err)
	}
	return perr.Kind
}

func TestNewGraphChain(t *testing.T) {
	g, err := NewGraph([]Node{
		node("top", "mid"),
		node("mid", "leaf"),
		node("leaf"),
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	if g.Top() != "top" {
		t.Errorf("Top = %q, want top", g.Top())
	}
	want := []string{"leaf", "mid", "top"}
	if diff := cmp.Diff(want, g.TopologicalOrder()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNewGraphDiamond(t *testing.T) {
	g, err := NewGraph([]Node{
		node("top", "left", "right"),
		node("right", "leaf"),
		node("left", "leaf"),
		node("leaf"),
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	want := []string{"leaf", "left", "right", "top"}
	if diff := cmp.Diff(want, g.TopologicalOrder()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	deps := g.TransitiveDependents("leaf")
	wantDeps := []string{"left", "right", "top"}
	if diff := cmp.Diff(wantDeps, deps); diff != "" {
		t.Errorf("TransitiveDependents mismatch (-want +got):\n%s", diff)
	}
}

func TestNewGraphDeterministicSiblingOrder(t *testing.T) {
	nodes := []Node{
		node("zeta"),
		node("top", "zeta", "alpha", "mid"),
		node("alpha"),
		node("mid"),
	}

	want := []string{"alpha", "mid", "zeta", "top"}
	for i := 0; i < 5; i++ {
		g, err := NewGraph(nodes)
		if err != nil {
			t.Fatalf("NewGraph: %v", err)
		}
		if diff := cmp.Diff(want, g.TopologicalOrder()); diff != "" {
			t.Fatalf("iteration %d order mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestNewGraphRepeatedDependency(t *testing.T) {
	// A full adder instantiates two half adders: the name repeats.
	g, err := NewGraph([]Node{
		node("full_adder", "half_adder", "half_adder"),
		node("half_adder"),
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	if diff := cmp.Diff([]string{"full_adder"}, g.Dependents("half_adder")); diff != "" {
		t.Errorf("Dependents mismatch (-want +got):\n%s", diff)
	}
}

func TestNewGraphCycle(t *testing.T) {
	_, err := NewGraph([]Node{
		node("a", "b"),
		node("b", "a"),
		node("top", "a"),
	})
	if kind := kindOf(t, err); kind != CyclicDependency {
		t.Errorf("kind = %q, want %q", kind, CyclicDependency)
	}
}

func TestNewGraphSelfDependency(t *testing.T) {
	_, err := NewGraph([]Node{node("a", "a")})
	if kind := kindOf(t, err); kind != CyclicDependency {
		t.Errorf("kind = %q, want %q", kind, CyclicDependency)
	}
}

func TestNewGraphAmbiguousTop(t *testing.T) {
	_, err := NewGraph([]Node{
		node("adder"),
		node("subtractor"),
	})
	if kind := kindOf(t, err); kind != AmbiguousTop {
		t.Errorf("kind = %q, want %q", kind, AmbiguousTop)
	}
}

func TestNewGraphRejectsMalformedNodes(t *testing.T) {
	valid := node("ok")

	cases := []struct {
		name  string
		nodes []Node
	}{
		{"empty plan", nil},
		{"unknown dependency", []Node{node("top", "ghost")}},
		{"duplicate names", []Node{node("top", "a"), node("a"), node("a")}},
		{"keyword module name", []Node{{Name: "module", Description: "x", Ports: valid.Ports}}},
		{"bad identifier", []Node{{Name: "8bit", Description: "x", Ports: valid.Ports}}},
		{"no ports", []Node{{Name: "top", Description: "x"}}},
		{"no description", []Node{{Name: "top", Ports: valid.Ports}}},
		{"duplicate port", []Node{{Name: "top", Description: "x", Ports: []hdl.Port{
			{Name: "y", Width: 1, Direction: hdl.Output},
			{Name: "y", Width: 1, Direction: hdl.Input},
		}}}},
		{"bad direction", []Node{{Name: "top", Description: "x", Ports: []hdl.Port{
			{Name: "y", Width: 1, Direction: "sideways"},
		}}}},
		{"negative width", []Node{{Name: "top", Description: "x", Ports: []hdl.Port{
			{Name: "y", Width: -1, Direction: hdl.Output},
		}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGraph(tc.nodes)
			if kind := kindOf(t, err); kind != UnparsableDecomposition {
				t.Errorf("kind = %q, want %q", kind, UnparsableDecomposition)
			}
		})
	}
}

func TestGraphNodeLookup(t *testing.T) {
	g, err := NewGraph([]Node{node("top", "leaf"), node("leaf")})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	if _, ok := g.Node("leaf"); !ok {
		t.Error("Node(leaf) not found")
	}
	if _, ok := g.Node("ghost"); ok {
		t.Error("Node(ghost) unexpectedly found")
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d, want 2", g.Len())
	}
}
