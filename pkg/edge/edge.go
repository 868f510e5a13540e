package edge

import (
	"regexp"
	"strings"
)

// Edge is a directed edge between two quoted node identifiers.
// For Nix graph dumps From is the dependency and To the dependent.
type Edge struct {
	From string
	To   string
}

// String returns the edge in DOT notation.
func (e Edge) String() string {
	return `"` + e.From + `" -> "` + e.To + `"`
}

// edgeRe matches a quoted source, an arrow and a quoted target at the start of
// a line. Quoted identifiers are non-empty and cannot contain '"'. Anything
// after the target (attribute block, terminating ';') is ignored.
var edgeRe = regexp.MustCompile(`^[ \t]*"([^"]+)"[ \t]*->[ \t]*"([^"]+)"`)

// Parse extracts the edge encoded in line. The boolean is false for lines
// that are not edge lines (headers, node declarations, blank lines).
func Parse(line string) (Edge, bool) {
	m := edgeRe.FindStringSubmatch(line)
	if m == nil {
		return Edge{}, false
	}
	return Edge{From: m[1], To: m[2]}, true
}

// ParseAll parses every line of text and returns the edges in input order.
// Non-edge lines are skipped. Duplicate edges are returned as they appear.
// Lines may be of any length.
func ParseAll(text string) []Edge {
	var edges []Edge
	for line := range strings.Lines(text) {
		if e, ok := Parse(line); ok {
			edges = append(edges, e)
		}
	}
	return edges
}
