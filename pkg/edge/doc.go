// Package edge parses edge lines of the Graphviz dump printed by
// `nix-store --query --graph`.
//
// The dump mixes structural lines (the digraph header, node declarations with
// attribute blocks, the closing brace) with edge lines of the form
//
//	"8mpavycfjg344ndv0h5a3brcz02gq5p0-meson-1.6.0.drv" -> "0286hdmnafzkx80vkqri0nwa2pr1qxdp-gtk+3-3.24.43.drv" [color = "burlywood"];
//
// Only the edge lines carry information for dependency analysis. [Parse]
// recognizes them line by line and reports every other line as a non-match
// instead of an error, so callers never need a grammar for the surrounding
// DOT document.
package edge
