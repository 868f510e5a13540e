// Package pkg provides the libraries behind drvgraph.
//
// # Overview
//
// drvgraph answers one question about a Nix flake: which of its packages and
// checks is each of them built from? The pkg directory is organized as:
//
//  1. [edge] - Parser for the edge lines of nix-store --graph dumps
//  2. [graph] - Derivation graph, reachability and dominator trees
//  3. [depmap] - Dependency maps over tracked derivations
//  4. [nix] - Invocation of nix and nix-store
//  5. [pipeline] - Orchestration (enumerate → graph → analyze)
//  6. [cache], [config], [errors], [observability], [render] - Supporting infrastructure
//
// # Architecture
//
// The data flow of an analysis:
//
//	Flake reference
//	         ↓
//	    [nix] package (nix eval: tracked derivations)
//	         ↓
//	    [nix] + [edge] packages (nix-store --query --graph per derivation)
//	         ↓
//	    [graph] package (one shared graph, frozen after construction)
//	         ↓
//	    [depmap] package (reachability, optional dominance filtering)
//	         ↓
//	    [render] package (text, JSON, DOT or SVG)
//
// # Quick Start
//
//	client := &nix.Client{Cache: cache.NewNullCache()}
//	result, err := pipeline.NewRunner(client, nil).Execute(ctx, pipeline.Options{
//	    FlakeURL:      ".",
//	    SkipDominated: true,
//	})
//	if err != nil {
//	    return err
//	}
//	out, err := render.Render(result.Map, render.FormatText)
package pkg
