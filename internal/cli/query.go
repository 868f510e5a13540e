package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/drvgraph/pkg/config"
	"github.com/matzehuels/drvgraph/pkg/graph"
)

// queryCommand creates the query debug command.
func (c *CLI) queryCommand() *cobra.Command {
	var (
		noCache bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <drv-path>",
		Short: "Dump the build graph of one store derivation",
		Long: `Run nix-store --query --graph for a single store derivation and report
how many edges the dump contains. Useful to check that Nix is reachable and
that graph dumps parse.`,
		Example: `  drvgraph query /nix/store/yn1fkbzqij1wqsj6v0fhgpw0k0dwx102-microkit-sdk-1.4.1.drv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if noCache {
				cfg.Cache.Backend = config.BackendNone
			}
			if timeout > 0 {
				cfg.QueryTimeout = config.Duration(timeout)
			}

			ctx := cmd.Context()
			client, err := c.newClient(ctx, cfg, loggerFromContext(ctx))
			if err != nil {
				return err
			}
			defer client.Cache.Close()

			spinner := newSpinnerWithContext(ctx, "Querying "+args[0]+"...")
			spinner.Start()
			b := graph.NewBuilder()
			ext, err := b.ExtendFromQuery(ctx, client, args[0])
			if err != nil {
				spinner.StopWithError("Query failed")
				return err
			}
			spinner.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "found_edges: %d\n", ext.FoundEdges)
			fmt.Fprintf(out, "new_edges: %d\n", ext.NewEdges)
			fmt.Fprintf(out, "nodes: %d\n", b.NodeCount())
			fmt.Fprintf(out, "elapsed: %s\n", ext.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "deadline for the nix-store invocation (0 keeps the configured value)")
	return cmd
}
