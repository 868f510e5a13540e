package nix

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/drvgraph/pkg/cache"
	derrors "github.com/matzehuels/drvgraph/pkg/errors"
	"github.com/matzehuels/drvgraph/pkg/observability"
)

// Default program names and timeout.
const (
	DefaultNix      = "nix"
	DefaultNixStore = "nix-store"
	DefaultTimeout  = 10 * time.Minute
)

//go:embed assets/flake-outputs.nix
var flakeOutputsScript []byte

// FlakeOutputsScript returns the Nix expression applied to a flake to list
// its outputs.
func FlakeOutputsScript() []byte {
	return flakeOutputsScript
}

// FlakeOutput is one derivation exposed by a flake.
type FlakeOutput struct {
	DrvPath   string `json:"drvPath"`   // e.g. /nix/store/<hash>-hello-2.12.drv
	FlakePath string `json:"flakePath"` // e.g. packages.x86_64-linux.hello
}

// Client invokes nix and nix-store. The zero value is usable: it runs the
// default programs without caching.
type Client struct {
	Exec     Executor      // defaults to ExecExecutor
	Nix      string        // defaults to DefaultNix
	NixStore string        // defaults to DefaultNixStore
	Timeout  time.Duration // per invocation; defaults to DefaultTimeout, negative disables
	Cache    cache.Cache   // defaults to cache.NullCache
	Keyer    cache.Keyer   // defaults to cache.DefaultKeyer
	Logger   *log.Logger   // defaults to log.Default()

	// OutputsTTL bounds how long a flake evaluation is reused.
	// Zero selects cache.TTLOutputs.
	OutputsTTL time.Duration
}

// FlakeOutputs evaluates flakeURL and returns the store derivations of its
// packages and checks for all systems. With refresh set the cache is
// bypassed; the fresh result is still stored.
func (c *Client) FlakeOutputs(ctx context.Context, flakeURL string, refresh bool) ([]FlakeOutput, error) {
	if flakeURL == "" {
		return nil, derrors.New(derrors.ErrCodeInvalidInput, "empty flake reference")
	}
	key := c.keyer().OutputsKey(flakeURL, flakeOutputsScript)

	var outputs []FlakeOutput
	fetch := func(ctx context.Context) ([]byte, error) {
		c.logger().Info("evaluating flake, this might take a couple of minutes", "flake", flakeURL)
		out, err := c.run(ctx, c.nix(),
			"eval", "--json",
			"--include", "nixpkgs=flake:nixpkgs",
			"--impure",
			"--apply", string(flakeOutputsScript),
			flakeURL+"#.",
		)
		if err != nil {
			return nil, err
		}
		if outputs, err = decodeOutputs(out); err != nil {
			return nil, derrors.Wrap(derrors.ErrCodeMalformedOutput, err, "decode outputs of %s", flakeURL)
		}
		return out, nil
	}

	data, err := c.cached(ctx, "outputs", key, refresh, c.outputsTTL(), fetch)
	if err != nil {
		return nil, err
	}
	if outputs == nil {
		if outputs, err = decodeOutputs(data); err != nil {
			// Entry written by an older version; drop it and evaluate again.
			c.logger().Warn("discarding undecodable cache entry", "key", key, "err", err)
			_ = c.cache().Delete(ctx, key)
			if _, err := c.cached(ctx, "outputs", key, true, c.outputsTTL(), fetch); err != nil {
				return nil, err
			}
		}
	}
	c.logger().Debug("flake evaluated", "flake", flakeURL, "outputs", len(outputs))
	return outputs, nil
}

// decodeOutputs decodes the JSON list printed by the flake outputs script.
// The result is non-nil on success, also for an empty list.
func decodeOutputs(data []byte) ([]FlakeOutput, error) {
	outputs := []FlakeOutput{}
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, err
	}
	if outputs == nil {
		return nil, errors.New("expected a list of outputs, got null")
	}
	return outputs, nil
}

// QueryGraph returns the Graphviz dump of the build graph of drvPath.
// The output is validated as UTF-8 before it is cached.
func (c *Client) QueryGraph(ctx context.Context, drvPath string) ([]byte, error) {
	if drvPath == "" {
		return nil, derrors.New(derrors.ErrCodeInvalidInput, "empty derivation path")
	}
	return c.cached(ctx, "query", c.keyer().QueryKey(drvPath), false, cache.TTLQuery, func(ctx context.Context) ([]byte, error) {
		out, err := c.run(ctx, c.nixStore(), "--query", drvPath, "--graph")
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(out) {
			return nil, derrors.New(derrors.ErrCodeMalformedOutput, "graph of %s is not valid UTF-8", drvPath)
		}
		return out, nil
	})
}

// cached returns the entry under key, or calls fetch and stores its result.
// Cache failures degrade to a miss. kind labels the hook events.
func (c *Client) cached(ctx context.Context, kind, key string, refresh bool, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	store := c.cache()
	hooks := observability.Cache()
	if !refresh {
		data, ok, err := store.Get(ctx, key)
		if err != nil {
			c.logger().Warn("cache read failed", "key", key, "err", err)
		}
		if ok {
			hooks.OnCacheHit(ctx, kind)
			return data, nil
		}
		hooks.OnCacheMiss(ctx, kind)
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Set(ctx, key, data, ttl); err != nil {
		c.logger().Warn("cache write failed", "key", key, "err", err)
	} else {
		hooks.OnCacheSet(ctx, kind, len(data))
	}
	return data, nil
}

func (c *Client) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if timeout := c.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	exec := c.Exec
	if exec == nil {
		exec = ExecExecutor{Logger: c.Logger}
	}

	hooks := observability.Command()
	hooks.OnCommandStart(ctx, name)
	start := time.Now()
	out, err := exec.Run(ctx, name, args...)
	hooks.OnCommandComplete(ctx, name, len(out), time.Since(start), err)
	return out, err
}

func (c *Client) nix() string {
	if c.Nix != "" {
		return c.Nix
	}
	return DefaultNix
}

func (c *Client) nixStore() string {
	if c.NixStore != "" {
		return c.NixStore
	}
	return DefaultNixStore
}

func (c *Client) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Client) outputsTTL() time.Duration {
	if c.OutputsTTL > 0 {
		return c.OutputsTTL
	}
	return cache.TTLOutputs
}

func (c *Client) cache() cache.Cache {
	if c.Cache == nil {
		return cache.NullCache{}
	}
	return c.Cache
}

func (c *Client) keyer() cache.Keyer {
	if c.Keyer == nil {
		return cache.DefaultKeyer{}
	}
	return c.Keyer
}

func (c *Client) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}
