// Package config loads drvgraph settings.
//
// Settings are layered, later sources overriding earlier ones:
//
//  1. built-in defaults ([Default])
//  2. the TOML config file, $XDG_CONFIG_HOME/drvgraph/config.toml unless a
//     path is given
//  3. a .env file in the working directory
//  4. DRVGRAPH_* environment variables
//
// Command line flags are applied by the CLI on top of the loaded [Config].
//
// Example config file:
//
//	exclude = ["checks.x86_64-linux.formatting"]
//	skip_dominated = true
//	jobs = 8
//	query_timeout = "5m"
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//	prefix = "drvgraph:"
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/drvgraph/pkg/cache"
	derrors "github.com/matzehuels/drvgraph/pkg/errors"
	"github.com/matzehuels/drvgraph/pkg/nix"
)

// AppName names the config and cache directories.
const AppName = "drvgraph"

// Cache backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Backends lists the supported cache backends.
var Backends = []string{BackendFile, BackendMemory, BackendRedis, BackendNone}

// DefaultJobs is the default number of concurrent graph queries.
const DefaultJobs = 4

// Config holds all settings.
type Config struct {
	Exclude       []string `toml:"exclude"`
	SkipDominated bool     `toml:"skip_dominated"`
	Jobs          int      `toml:"jobs"`
	QueryTimeout  Duration `toml:"query_timeout"`
	Nix           string   `toml:"nix"`
	NixStore      string   `toml:"nix_store"`

	Cache CacheConfig `toml:"cache"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend    string   `toml:"backend"`
	Dir        string   `toml:"dir"`
	RedisURL   string   `toml:"redis_url"`
	Prefix     string   `toml:"prefix"`
	MemorySize int      `toml:"memory_size"`
	OutputsTTL Duration `toml:"outputs_ttl"`
}

// Duration is a time.Duration written as a string such as "90s" or "10m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Jobs:         DefaultJobs,
		QueryTimeout: Duration(nix.DefaultTimeout),
		Nix:          nix.DefaultNix,
		NixStore:     nix.DefaultNixStore,
		Cache: CacheConfig{
			Backend:    BackendFile,
			MemorySize: cache.DefaultMemorySize,
			OutputsTTL: Duration(cache.TTLOutputs),
		},
	}
}

// Load builds the layered configuration. An empty path selects
// [DefaultPath], which may be missing; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes the TOML file at path over cfg. Keys absent from the file
// keep their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return derrors.Wrap(derrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return derrors.New(derrors.ErrCodeInvalidConfig, "%s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Jobs <= 0 {
		return derrors.New(derrors.ErrCodeInvalidConfig, "jobs must be positive, got %d", c.Jobs)
	}
	if c.QueryTimeout < 0 {
		return derrors.New(derrors.ErrCodeInvalidConfig, "query_timeout must not be negative")
	}
	if c.Nix == "" || c.NixStore == "" {
		return derrors.New(derrors.ErrCodeInvalidConfig, "nix and nix_store must name programs")
	}
	if !slices.Contains(Backends, c.Cache.Backend) {
		return derrors.New(derrors.ErrCodeInvalidConfig, "unknown cache backend %q (want one of %v)", c.Cache.Backend, Backends)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisURL == "" {
		return derrors.New(derrors.ErrCodeInvalidConfig, "cache backend redis requires redis_url")
	}
	if c.Cache.MemorySize < 0 {
		return derrors.New(derrors.ErrCodeInvalidConfig, "memory_size must not be negative")
	}
	if c.Cache.OutputsTTL < 0 {
		return derrors.New(derrors.ErrCodeInvalidConfig, "outputs_ttl must not be negative")
	}
	return nil
}

// NewCache opens the configured cache backend.
func (c *Config) NewCache(ctx context.Context) (cache.Cache, error) {
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendMemory:
		return cache.NewMemoryCache(c.Cache.MemorySize)
	case BackendRedis:
		return cache.NewRedisCache(ctx, c.Cache.RedisURL)
	case BackendFile, "":
		dir := c.Cache.Dir
		if dir == "" {
			d, err := DefaultCacheDir()
			if err != nil {
				return nil, fmt.Errorf("get cache dir: %w", err)
			}
			dir = d
		}
		return cache.NewFileCache(dir)
	default:
		return nil, derrors.New(derrors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
}

// Keyer returns the cache keyer, scoped by the configured prefix.
func (c *Config) Keyer() cache.Keyer {
	if c.Cache.Prefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.Cache.Prefix)
}

// DefaultPath returns the config file location using the XDG standard
// (~/.config/drvgraph/config.toml).
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// DefaultCacheDir returns the cache directory using the XDG standard
// (~/.cache/drvgraph/).
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}
