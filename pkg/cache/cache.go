// Package cache stores outputs of external Nix commands between runs.
//
// Evaluating a flake and dumping derivation graphs are the slow parts of an
// analysis. Graph dumps of store derivations are immutable (the store path
// fixes the whole closure) and are cached without expiry. Flake evaluations
// depend on the flake reference, which may float, and expire after
// [TTLOutputs].
//
// Backends:
//   - [FileCache]: one JSON file per key under a cache directory (CLI default)
//   - [MemoryCache]: bounded in-process LRU
//   - [RedisCache]: shared cache for CI runners
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// TTL defaults for cached entries. Zero means no expiry.
const (
	TTLQuery   time.Duration = 0
	TTLOutputs               = 24 * time.Hour
)

// Cache is a byte-oriented key-value store with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key. The boolean reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the cache.
	Close() error
}

// Keyer generates cache keys for the cached command outputs.
type Keyer interface {
	// QueryKey is the key of the graph dump of one store derivation.
	QueryKey(drvPath string) string
	// OutputsKey is the key of the output enumeration of a flake, evaluated
	// with the given evaluation script.
	OutputsKey(flakeURL string, script []byte) string
}

// DefaultKeyer generates unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// QueryKey returns "query:<hash>" for drvPath.
func (DefaultKeyer) QueryKey(drvPath string) string {
	return hashKey("query", drvPath)
}

// OutputsKey returns "outputs:<hash>" for the flake and script. Changing the
// script invalidates earlier entries.
func (DefaultKeyer) OutputsKey(flakeURL string, script []byte) string {
	return hashKey("outputs", flakeURL, Hash(script))
}
