package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/drvgraph/pkg/depmap"
)

// ToDOT converts a dependency map to Graphviz DOT format.
// Nodes are keyed by store path and labeled with the flake attribute path;
// edges point from each dependency to its dependent. Dependents without
// dependencies are drawn dashed.
func ToDOT(m depmap.DependencyMap) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	referenced := make(map[string]bool)
	for _, e := range m {
		for _, d := range e.Dependencies {
			referenced[d.DrvPath] = true
		}
	}
	for _, e := range m {
		attrs := fmt.Sprintf("label=%q", e.Dependent.String())
		if len(e.Dependencies) == 0 && !referenced[e.Dependent.DrvPath] {
			attrs += ", style=\"rounded,filled,dashed\""
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", e.Dependent.DrvPath, attrs)
	}

	buf.WriteString("\n")
	for _, e := range m {
		for _, d := range e.Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", d.DrvPath, e.Dependent.DrvPath)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the root svg tag so the image scales from the
// origin with its natural size.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
