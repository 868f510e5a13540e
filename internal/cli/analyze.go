package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/drvgraph/pkg/config"
	"github.com/matzehuels/drvgraph/pkg/pipeline"
	"github.com/matzehuels/drvgraph/pkg/render"
)

// analyzeOpts holds the flags of the analyze command.
type analyzeOpts struct {
	skipDominated bool
	exclude       []string
	jobs          int
	format        string
	output        string
	refresh       bool
	noCache       bool
	timeout       time.Duration
}

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	opts := analyzeOpts{format: render.FormatText}

	cmd := &cobra.Command{
		Use:   "analyze <flake-ref>",
		Short: "Compute which flake outputs each flake output depends on",
		Long: `Evaluate a flake, merge the build graphs of all of its packages and checks,
and print for each of them the other packages and checks it is built from.

With --skip-dominated, a dependency is left out when every path from it to
the dependent passes through another reported dependency.`,
		Example: `  # Analyze the flake in the current directory
  drvgraph analyze .

  # Only direct dependencies, as JSON
  drvgraph analyze github:owner/repo --skip-dominated --format json

  # Render an SVG, ignoring a formatting check
  drvgraph analyze . --exclude checks.x86_64-linux.fmt --format svg -o deps.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalyze(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.skipDominated, "skip-dominated", false, "drop dependencies only reached through another dependency")
	cmd.Flags().StringArrayVar(&opts.exclude, "exclude", nil, "flake attribute path to leave out (repeatable)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", config.DefaultJobs, "number of concurrent nix-store queries")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: text, json, dot, svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the dependency map to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-evaluate the flake instead of using a cached evaluation")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "deadline for each nix invocation (0 keeps the configured value)")

	return cmd
}

// applyFlags overrides configured values with the flags set on cmd.
func (opts analyzeOpts) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("skip-dominated") {
		cfg.SkipDominated = opts.skipDominated
	}
	cfg.Exclude = append(cfg.Exclude, opts.exclude...)
	if flags.Changed("jobs") {
		cfg.Jobs = opts.jobs
	}
	if opts.timeout > 0 {
		cfg.QueryTimeout = config.Duration(opts.timeout)
	}
	if opts.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
}

func (c *CLI) runAnalyze(cmd *cobra.Command, flakeURL string, opts analyzeOpts) error {
	if err := render.ValidateFormat(opts.format); err != nil {
		return err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	client, err := c.newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Cache.Close()

	// Without -v the spinner replaces per-stage log lines.
	var spinner *Spinner
	if !verbose(logger) {
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Analyzing %s...", flakeURL))
		defer spinner.trackRun()()
		spinner.Start()
	}

	runner := pipeline.NewRunner(client, pipelineLogger(logger))
	result, err := runner.Execute(ctx, pipeline.Options{
		FlakeURL:      flakeURL,
		Exclude:       cfg.Exclude,
		SkipDominated: cfg.SkipDominated,
		Jobs:          cfg.Jobs,
		Refresh:       opts.refresh,
	})
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	logResult(logger, result)
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.Stats.Queried, result.Stats.Skipped)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "edges: %d\n", result.Graph.EdgeCount())
	fmt.Fprintf(out, "dependencies: %d\n", result.Map.Total())

	data, err := render.Render(result.Map, opts.format)
	if err != nil {
		return fmt.Errorf("render %s: %w", opts.format, err)
	}
	if opts.output == "" {
		_, err = out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return err
	}
	printSuccess("Wrote dependency map")
	printFile(opts.output)
	return nil
}
