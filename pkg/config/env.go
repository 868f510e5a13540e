package config

import (
	"strconv"
	"strings"
	"time"

	derrors "github.com/matzehuels/drvgraph/pkg/errors"
)

// Environment variables read by ApplyEnv.
const (
	EnvExclude         = "DRVGRAPH_EXCLUDE" // comma separated
	EnvSkipDominated   = "DRVGRAPH_SKIP_DOMINATED"
	EnvJobs            = "DRVGRAPH_JOBS"
	EnvQueryTimeout    = "DRVGRAPH_QUERY_TIMEOUT"
	EnvNix             = "DRVGRAPH_NIX"
	EnvNixStore        = "DRVGRAPH_NIX_STORE"
	EnvCacheBackend    = "DRVGRAPH_CACHE_BACKEND"
	EnvCacheDir        = "DRVGRAPH_CACHE_DIR"
	EnvRedisURL        = "DRVGRAPH_REDIS_URL"
	EnvCachePrefix     = "DRVGRAPH_CACHE_PREFIX"
	EnvCacheMemorySize = "DRVGRAPH_CACHE_MEMORY_SIZE"
	EnvCacheOutputsTTL = "DRVGRAPH_CACHE_OUTPUTS_TTL"
)

// ApplyEnv overrides settings from the environment. Empty variables are
// ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := get(EnvExclude); v != "" {
		c.Exclude = splitList(v)
	}
	if v := get(EnvSkipDominated); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalidEnv(EnvSkipDominated, v, err)
		}
		c.SkipDominated = b
	}
	if v := get(EnvJobs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv(EnvJobs, v, err)
		}
		c.Jobs = n
	}
	if v := get(EnvQueryTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return invalidEnv(EnvQueryTimeout, v, err)
		}
		c.QueryTimeout = Duration(d)
	}
	c.Nix = firstNonEmpty(get(EnvNix), c.Nix)
	c.NixStore = firstNonEmpty(get(EnvNixStore), c.NixStore)
	c.Cache.Backend = firstNonEmpty(get(EnvCacheBackend), c.Cache.Backend)
	c.Cache.Dir = firstNonEmpty(get(EnvCacheDir), c.Cache.Dir)
	c.Cache.RedisURL = firstNonEmpty(get(EnvRedisURL), c.Cache.RedisURL)
	c.Cache.Prefix = firstNonEmpty(get(EnvCachePrefix), c.Cache.Prefix)
	if v := get(EnvCacheMemorySize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv(EnvCacheMemorySize, v, err)
		}
		c.Cache.MemorySize = n
	}
	if v := get(EnvCacheOutputsTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return invalidEnv(EnvCacheOutputsTTL, v, err)
		}
		c.Cache.OutputsTTL = Duration(d)
	}
	return nil
}

func invalidEnv(key, value string, err error) error {
	return derrors.Wrap(derrors.ErrCodeInvalidConfig, err, "%s=%q", key, value)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
