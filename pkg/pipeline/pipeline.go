// Package pipeline runs a complete drvgraph analysis.
//
// A run has three stages:
//
//  1. Enumerate: evaluate the flake and list its tracked derivations
//  2. Graph: merge the build graph of every tracked derivation into one
//     shared graph, querying up to Options.Jobs derivations concurrently
//  3. Analyze: compute the dependency map and optionally drop dominated
//     dependencies
//
// The graph is finished before analysis starts, so the analysis stage only
// ever reads it.
//
// # Usage
//
//	client := &nix.Client{Cache: c, Logger: logger}
//	runner := pipeline.NewRunner(client, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    FlakeURL:      "github:owner/repo",
//	    SkipDominated: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Graph.EdgeCount(), result.Map.Total())
package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/drvgraph/pkg/depmap"
	derrors "github.com/matzehuels/drvgraph/pkg/errors"
	"github.com/matzehuels/drvgraph/pkg/graph"
	"github.com/matzehuels/drvgraph/pkg/nix"
)

// DefaultJobs is the number of graph queries run concurrently when
// Options.Jobs is zero.
const DefaultJobs = 4

// Source provides the flake outputs and graph dumps a run needs.
// [*nix.Client] implements it.
type Source interface {
	FlakeOutputs(ctx context.Context, flakeURL string, refresh bool) ([]nix.FlakeOutput, error)
	graph.Querier
}

// Options configures a run.
type Options struct {
	// FlakeURL is the flake reference to analyze, e.g. "github:owner/repo" or ".".
	FlakeURL string
	// Exclude lists flake attribute paths left out of the analysis.
	Exclude []string
	// SkipDominated drops dependencies only required through another
	// dependency.
	SkipDominated bool
	// Jobs bounds concurrent graph queries. Zero selects DefaultJobs.
	Jobs int
	// Workers bounds concurrent dependency map workers. Zero selects
	// runtime.GOMAXPROCS(0).
	Workers int
	// Refresh re-evaluates the flake instead of using a cached evaluation.
	Refresh bool

	// Logger overrides the runner's logger for this run.
	Logger *log.Logger
}

// ValidateAndSetDefaults checks the options and fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.FlakeURL == "" {
		return derrors.New(derrors.ErrCodeInvalidInput, "flake reference is required")
	}
	if o.Jobs < 0 {
		return derrors.New(derrors.ErrCodeInvalidInput, "jobs must not be negative, got %d", o.Jobs)
	}
	if o.Workers < 0 {
		return derrors.New(derrors.ErrCodeInvalidInput, "workers must not be negative, got %d", o.Workers)
	}
	if o.Jobs == 0 {
		o.Jobs = DefaultJobs
	}
	return nil
}

// Result holds the outcome of a run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string
	// Derivations are the tracked derivations, in enumeration order.
	Derivations []depmap.Derivation
	// Graph is the finished derivation graph.
	Graph *graph.Graph
	// Raw is the dependency map before dominance filtering.
	Raw depmap.DependencyMap
	// Map is the final dependency map. It equals Raw unless SkipDominated
	// was set.
	Map depmap.DependencyMap

	Stats Stats
}

// Stats summarizes a run.
//
// With more than one job, Queried and Skipped may differ between runs over
// the same flake: whether a derivation is skipped depends on which dumps
// finished first. The graph and the map do not.
type Stats struct {
	EnumerateTime time.Duration
	GraphTime     time.Duration
	AnalyzeTime   time.Duration

	Queried int // derivations whose graph was dumped
	Skipped int // derivations already contained in the graph

	NodeCount    int
	EdgeCount    int
	Dependencies int // total over all entries of Map
}
