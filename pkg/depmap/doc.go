// Package depmap computes which tracked derivations depend on which.
//
// Given a finished [graph.Graph] and the derivations exposed by a flake, a
// [Builder] records for every derivation D each other derivation C that has a
// path C -> D in the graph, i.e. every tracked derivation that has to be built
// before D.
//
// With SkipDominated set the map is reduced further: a dependency X of D is
// dropped when another dependency Y of D lies on every path from X to D. X is
// then only needed because Y needs it and carries no information of its own.
// The decision uses the dominator tree rooted at X, which is computed once per
// dependency and shared by all dependents.
//
// For edges A -> B, B -> C the unfiltered map is
//
//	A: {}
//	B: {A}
//	C: {A, B}
//
// and the filtered map reports C: {B}. With an additional direct edge A -> C,
// A reaches C without passing through B and stays in C's set.
package depmap
