package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/drvgraph/pkg/buildinfo"
	"github.com/matzehuels/drvgraph/pkg/config"
	"github.com/matzehuels/drvgraph/pkg/nix"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	exec       nix.Executor // nil runs the real programs
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "drvgraph",
		Short: "drvgraph maps the outputs of a Nix flake to the outputs they are built from",
		Long: `drvgraph evaluates a Nix flake, merges the build graphs of all of its
packages and checks, and reports for each of them which other outputs of the
same flake it depends on.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/drvgraph/config.toml)")

	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.queryCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Client Factory
// =============================================================================

// loadConfig loads the layered configuration.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newClient opens the configured cache and returns a Nix client using it.
// The caller closes client.Cache.
func (c *CLI) newClient(ctx context.Context, cfg config.Config, logger *log.Logger) (*nix.Client, error) {
	store, err := cfg.NewCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &nix.Client{
		Exec:       c.exec,
		Nix:        cfg.Nix,
		NixStore:   cfg.NixStore,
		Timeout:    timeoutOrDisabled(cfg.QueryTimeout.Std()),
		Cache:      store,
		Keyer:      cfg.Keyer(),
		Logger:     logger,
		OutputsTTL: cfg.Cache.OutputsTTL.Std(),
	}, nil
}

// timeoutOrDisabled maps a configured zero timeout to "no deadline".
func timeoutOrDisabled(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
