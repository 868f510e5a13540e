package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/drvgraph/pkg/depmap"
	"github.com/matzehuels/drvgraph/pkg/graph"
	"github.com/matzehuels/drvgraph/pkg/nix"
	"github.com/matzehuels/drvgraph/pkg/observability"
)

// Runner executes analysis runs.
//
// The Runner holds no per-run state, so multiple goroutines can safely use
// the same Runner with different options.
type Runner struct {
	Source Source
	Logger *log.Logger
}

// NewRunner creates a runner reading from src.
// If logger is nil, log.Default() is used.
func NewRunner(src Source, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Source: src, Logger: logger}
}

// Execute runs the complete enumerate → graph → analyze pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	result := &Result{RunID: uuid.NewString()}
	logger := r.logger(opts).With("run", result.RunID)
	hooks := observability.Pipeline()

	// Stage 1: Enumerate
	start := time.Now()
	hooks.OnEnumerateStart(ctx, opts.FlakeURL)
	drvs, err := r.Enumerate(ctx, opts.FlakeURL, opts.Refresh)
	result.Stats.EnumerateTime = time.Since(start)
	hooks.OnEnumerateComplete(ctx, opts.FlakeURL, len(drvs), result.Stats.EnumerateTime, err)
	if err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}
	result.Derivations = drvs
	logger.Info("evaluated flake",
		"flake", opts.FlakeURL,
		"derivations", len(drvs),
		"duration", result.Stats.EnumerateTime)
	for _, path := range opts.Exclude {
		if !slices.ContainsFunc(drvs, func(d depmap.Derivation) bool { return d.FlakePath == path }) {
			logger.Warn("excluded attribute not found in flake", "attr", path)
		}
	}

	// Stage 2: Graph
	start = time.Now()
	b := graph.NewBuilder()
	queried, skipped, err := r.BuildGraph(ctx, b, drvs, opts.Jobs, logger)
	g := b.Finish()
	result.Stats.GraphTime = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	result.Graph = g
	result.Stats.Queried = queried
	result.Stats.Skipped = skipped
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	hooks.OnGraphBuilt(ctx, g.NodeCount(), g.EdgeCount(), result.Stats.GraphTime)
	logger.Info("built derivation graph",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"queried", queried,
		"skipped", skipped,
		"duration", result.Stats.GraphTime)

	// Stage 3: Analyze
	start = time.Now()
	hooks.OnAnalyzeStart(ctx, len(drvs), opts.SkipDominated)
	mb := &depmap.Builder{
		Graph:       g,
		Derivations: drvs,
		Skipped:     opts.Exclude,
		Workers:     opts.Workers,
	}
	raw, final, err := analyze(ctx, mb, opts.SkipDominated)
	result.Stats.AnalyzeTime = time.Since(start)
	hooks.OnAnalyzeComplete(ctx, final.Total(), result.Stats.AnalyzeTime, err)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	result.Raw = raw
	result.Map = final
	result.Stats.Dependencies = final.Total()
	logger.Info("computed dependency map",
		"dependents", final.Len(),
		"dependencies", final.Total(),
		"skip_dominated", opts.SkipDominated,
		"duration", result.Stats.AnalyzeTime)

	return result, nil
}

func analyze(ctx context.Context, mb *depmap.Builder, skipDominated bool) (raw, final depmap.DependencyMap, err error) {
	raw, err = mb.BuildMap(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !skipDominated {
		return raw, raw, nil
	}
	final, err = mb.FilterDominated(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, final, nil
}

// Enumerate evaluates the flake and converts its outputs to derivations.
func (r *Runner) Enumerate(ctx context.Context, flakeURL string, refresh bool) ([]depmap.Derivation, error) {
	outputs, err := r.Source.FlakeOutputs(ctx, flakeURL, refresh)
	if err != nil {
		return nil, err
	}
	return Derivations(outputs)
}

// Derivations converts flake outputs to tracked derivations, keeping their
// order.
func Derivations(outputs []nix.FlakeOutput) ([]depmap.Derivation, error) {
	drvs := make([]depmap.Derivation, 0, len(outputs))
	for _, o := range outputs {
		d, err := depmap.NewDerivation(o.DrvPath, o.FlakePath)
		if err != nil {
			return nil, err
		}
		drvs = append(drvs, d)
	}
	return drvs, nil
}

// BuildGraph extends b with the graph dump of every derivation in drvs.
// Up to jobs queries run concurrently; the first failure cancels the rest.
// It returns the number of queried and skipped derivations; see [Stats] for
// why these depend on timing when jobs > 1.
func (r *Runner) BuildGraph(ctx context.Context, b *graph.Builder, drvs []depmap.Derivation, jobs int, logger *log.Logger) (queried, skipped int, err error) {
	if logger == nil {
		logger = r.logger(Options{})
	}
	hooks := observability.Pipeline()

	var mu sync.Mutex
	seen := make(map[string]struct{}, len(drvs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, jobs))
	for _, d := range drvs {
		if _, dup := seen[d.DrvPath]; dup {
			continue
		}
		seen[d.DrvPath] = struct{}{}

		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ext, err := b.ExtendFromQuery(ctx, r.Source, d.DrvPath)
			hooks.OnQuery(ctx, d.DrvPath, ext.Skipped, ext.NewEdges, ext.Elapsed, err)
			if err != nil {
				return fmt.Errorf("query %s: %w", d.FlakePath, err)
			}

			mu.Lock()
			if ext.Skipped {
				skipped++
			} else {
				queried++
			}
			mu.Unlock()

			if ext.Skipped {
				logger.Debug("already in graph", "path", d.DrvPath)
				return nil
			}
			logger.Debug("extended graph",
				"path", d.DrvPath,
				"found_edges", ext.FoundEdges,
				"new_edges", ext.NewEdges,
				"elapsed", ext.Elapsed)
			return nil
		})
	}
	err = eg.Wait()
	return queried, skipped, err
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}
