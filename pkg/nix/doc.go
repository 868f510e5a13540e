// Package nix runs the Nix command line tools drvgraph depends on.
//
// Two invocations are needed:
//
//   - [Client.FlakeOutputs] evaluates a flake with an embedded expression and
//     returns the store derivation of every package and check it exposes.
//   - [Client.QueryGraph] dumps the transitive build graph of one store
//     derivation in Graphviz format (nix-store --query --graph).
//
// Commands are started through an [Executor] so tests can substitute canned
// output. Results are cached through a [cache.Cache]; graph dumps never
// expire because store derivations are immutable.
package nix
