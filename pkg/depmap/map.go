package depmap

import (
	"slices"
)

// Entry is the dependency set of one dependent. Dependencies are sorted by
// [Derivation.Compare] and contain no duplicates and never the dependent.
type Entry struct {
	Dependent    Derivation   `json:"dependent"`
	Dependencies []Derivation `json:"dependencies"`
}

// DependencyMap maps dependents to their dependency sets. Entries are sorted
// by dependent, so iteration and JSON encoding are deterministic.
type DependencyMap []Entry

// Len returns the number of dependents.
func (m DependencyMap) Len() int { return len(m) }

// Total returns the number of dependencies summed over all dependents.
func (m DependencyMap) Total() int {
	n := 0
	for _, e := range m {
		n += len(e.Dependencies)
	}
	return n
}

// Get returns the dependencies of d.
func (m DependencyMap) Get(d Derivation) ([]Derivation, bool) {
	i, ok := slices.BinarySearchFunc(m, d, func(e Entry, t Derivation) int {
		return e.Dependent.Compare(t)
	})
	if !ok {
		return nil, false
	}
	return m[i].Dependencies, true
}

// Lookup returns the entry whose dependent has the given flake attribute path.
func (m DependencyMap) Lookup(flakePath string) (Entry, bool) {
	for _, e := range m {
		if e.Dependent.FlakePath == flakePath {
			return e, true
		}
	}
	return Entry{}, false
}

// Dependents returns all dependents in map order.
func (m DependencyMap) Dependents() []Derivation {
	out := make([]Derivation, len(m))
	for i, e := range m {
		out[i] = e.Dependent
	}
	return out
}

// sortMap orders entries by dependent and each dependency set.
func sortMap(m DependencyMap) {
	for i := range m {
		slices.SortFunc(m[i].Dependencies, Derivation.Compare)
		m[i].Dependencies = slices.CompactFunc(m[i].Dependencies, func(a, b Derivation) bool { return a == b })
	}
	slices.SortFunc(m, func(a, b Entry) int { return a.Dependent.Compare(b.Dependent) })
}
