// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about analysis runs, cache operations, and Nix commands.
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnEnumerateStart(ctx, flakeURL)
//	// ... evaluate flake ...
//	observability.Pipeline().OnEnumerateComplete(ctx, flakeURL, n, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from an analysis run.
type PipelineHooks interface {
	// Enumeration of the flake's tracked derivations
	OnEnumerateStart(ctx context.Context, flakeURL string)
	OnEnumerateComplete(ctx context.Context, flakeURL string, count int, duration time.Duration, err error)

	// OnQuery fires once per tracked derivation while the graph is built.
	// skipped reports that the derivation was already part of the graph.
	OnQuery(ctx context.Context, drvPath string, skipped bool, newEdges int, duration time.Duration, err error)

	// OnGraphBuilt fires when the write phase of the graph ends.
	OnGraphBuilt(ctx context.Context, nodes, edges int, duration time.Duration)

	// Dependency map construction, including dominance filtering
	OnAnalyzeStart(ctx context.Context, dependents int, skipDominated bool)
	OnAnalyzeComplete(ctx context.Context, dependencies int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Command Hooks
// =============================================================================

// CommandHooks receives events from external command invocations.
type CommandHooks interface {
	// OnCommandStart records a command about to be started.
	OnCommandStart(ctx context.Context, name string)

	// OnCommandComplete records the outcome of a command.
	OnCommandComplete(ctx context.Context, name string, outputSize int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnEnumerateStart(context.Context, string) {}
func (NoopPipelineHooks) OnEnumerateComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnQuery(context.Context, string, bool, int, time.Duration, error) {}
func (NoopPipelineHooks) OnGraphBuilt(context.Context, int, int, time.Duration)            {}
func (NoopPipelineHooks) OnAnalyzeStart(context.Context, int, bool)                        {}
func (NoopPipelineHooks) OnAnalyzeComplete(context.Context, int, time.Duration, error)     {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopCommandHooks is a no-op implementation of CommandHooks.
type NoopCommandHooks struct{}

func (NoopCommandHooks) OnCommandStart(context.Context, string)                                 {}
func (NoopCommandHooks) OnCommandComplete(context.Context, string, int, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	commandHooks  CommandHooks  = NoopCommandHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any analysis.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetCommandHooks registers custom command hooks.
func SetCommandHooks(h CommandHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		commandHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Command returns the registered command hooks.
func Command() CommandHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return commandHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	commandHooks = NoopCommandHooks{}
}
