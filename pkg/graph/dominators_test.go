package graph

import (
	"errors"
	"reflect"
	"testing"
)

func TestDominators(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		root  string
		want  map[string]string // node -> immediate dominator
	}{
		{
			name:  "LinearChain",
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}},
			root:  "a",
			want:  map[string]string{"b": "a", "c": "b", "d": "c"},
		},
		{
			name:  "Diamond",
			edges: [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			root:  "a",
			want:  map[string]string{"b": "a", "c": "a", "d": "a"},
		},
		{
			name: "MultiplePaths",
			edges: [][2]string{
				{"r", "a"}, {"r", "b"}, {"a", "c"}, {"b", "c"}, {"b", "d"}, {"c", "t"}, {"d", "t"},
			},
			root: "r",
			want: map[string]string{"a": "r", "b": "r", "c": "r", "d": "b", "t": "r"},
		},
		{
			name:  "Cycle",
			edges: [][2]string{{"r", "a"}, {"a", "b"}, {"b", "c"}, {"c", "a"}, {"c", "x"}},
			root:  "r",
			want:  map[string]string{"a": "r", "b": "a", "c": "b", "x": "c"},
		},
		{
			name:  "UnreachableExcluded",
			edges: [][2]string{{"r", "a"}, {"u", "a"}},
			root:  "r",
			want:  map[string]string{"a": "r"},
		},
		{
			name:  "RootFromMiddle",
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}},
			root:  "b",
			want:  map[string]string{"c": "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(tt.edges...)
			dt, err := g.Dominators(tt.root)
			if err != nil {
				t.Fatalf("Dominators(%s) error: %v", tt.root, err)
			}
			got := make(map[string]string)
			for _, n := range g.Nodes() {
				if d, ok := dt.ImmediateDominator(n); ok {
					got[n] = d
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("immediate dominators = %v, want %v", got, tt.want)
			}
			if _, ok := dt.ImmediateDominator(tt.root); ok {
				t.Error("root has an immediate dominator")
			}
		})
	}
}

func TestDominatorsUnknownRoot(t *testing.T) {
	g := build([2]string{"a", "b"})
	if _, err := g.Dominators("missing"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Dominators(missing) error = %v, want ErrUnknownNode", err)
	}
}

func TestStrictDominators(t *testing.T) {
	// a -> b -> c plus a -> c: c is only dominated by a.
	withShortcut := build([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"a", "c"})
	dt, _ := withShortcut.Dominators("a")
	if got, ok := dt.StrictDominators("c"); !ok || !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("StrictDominators(c) = %v, %v, want [a], true", got, ok)
	}

	// Without the shortcut every path to c passes through b.
	chain := build([2]string{"a", "b"}, [2]string{"b", "c"})
	dt, _ = chain.Dominators("a")
	if got, ok := dt.StrictDominators("c"); !ok || !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("StrictDominators(c) = %v, %v, want [b a], true", got, ok)
	}
	if got, ok := dt.StrictDominators("a"); !ok || len(got) != 0 {
		t.Errorf("StrictDominators(root) = %v, %v, want [], true", got, ok)
	}

	dt, _ = chain.Dominators("b")
	if got, ok := dt.StrictDominators("a"); ok || got != nil {
		t.Errorf("StrictDominators(unreachable) = %v, %v, want nil, false", got, ok)
	}
	if _, ok := dt.StrictDominators("missing"); ok {
		t.Error("StrictDominators(missing) ok = true, want false")
	}
}

func TestDominates(t *testing.T) {
	g := build([2]string{"r", "a"}, [2]string{"a", "b"}, [2]string{"r", "c"}, [2]string{"c", "b"}, [2]string{"b", "d"})
	dt, _ := g.Dominators("r")

	tests := []struct {
		a, b string
		want bool
	}{
		{"r", "d", true},
		{"b", "d", true},
		{"a", "b", false},
		{"c", "b", false},
		{"d", "d", true},
		{"d", "b", false},
		{"missing", "b", false},
	}
	for _, tt := range tests {
		if got := dt.Dominates(tt.a, tt.b); got != tt.want {
			t.Errorf("Dominates(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
