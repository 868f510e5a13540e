package cache

// ScopedKeyer wraps a Keyer with a prefix, so several tools or Nix systems
// can share one Redis instance without key collisions.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "drvgraph:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// QueryKey generates a prefixed graph dump key.
func (k *ScopedKeyer) QueryKey(drvPath string) string {
	return k.prefix + k.inner.QueryKey(drvPath)
}

// OutputsKey generates a prefixed flake output key.
func (k *ScopedKeyer) OutputsKey(flakeURL string, script []byte) string {
	return k.prefix + k.inner.OutputsKey(flakeURL, script)
}
