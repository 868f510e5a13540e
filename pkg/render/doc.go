// Package render writes dependency maps in human- and machine-readable form.
//
// Supported formats:
//
//   - text: one block per dependent listing its dependencies
//   - json: the map as a sorted JSON array, byte-for-byte deterministic
//   - dot: a Graphviz digraph with edges from dependency to dependent
//   - svg: the dot output laid out by Graphviz
//
// Derivations are labeled by their flake attribute path.
//
//	data, err := render.Render(m, render.FormatSVG)
package render
