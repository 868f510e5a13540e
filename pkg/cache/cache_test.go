package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always return a nil miss")
	}
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

// exerciseCache runs the behavior shared by all storing backends.
func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("graph dump"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "graph dump" {
		t.Fatalf("Get(k) = %q, %v, %v", data, hit, err)
	}
	if err := c.Set(ctx, "k", []byte("replaced"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if data, _, _ := c.Get(ctx, "k"); string(data) != "replaced" {
		t.Errorf("Get(k) after overwrite = %q", data)
	}
	if err := c.Set(ctx, "expired", []byte("old"), time.Nanosecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "expired"); hit {
		t.Error("expired entry returned as hit")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("deleted entry returned as hit")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(never-set) error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	defer c.Close()
	exerciseCache(t, c)
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path("k"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("Get(corrupt) = hit %v, err %v, want miss", hit, err)
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("corrupt entry was not removed")
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cache dir has %d entries after Clear", len(entries))
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
}

func TestMemoryCache(t *testing.T) {
	c, err := NewMemoryCache(0)
	if err != nil {
		t.Fatalf("NewMemoryCache error: %v", err)
	}
	defer c.Close()
	exerciseCache(t, c)
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(2)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, []byte(k), 0)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("least recently used entry was not evicted")
	}
	if got := c.(*MemoryCache).Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestNewRedisCacheInvalidURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-redis-url"); err == nil {
		t.Error("NewRedisCache(invalid url) error = nil")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	q1 := k.QueryKey("/nix/store/a.drv")
	if !strings.HasPrefix(q1, "query:") {
		t.Errorf("QueryKey unexpected: %s", q1)
	}
	if q1 == k.QueryKey("/nix/store/b.drv") {
		t.Error("Different paths should produce different keys")
	}

	o1 := k.OutputsKey("github:owner/repo", []byte("script v1"))
	o2 := k.OutputsKey("github:owner/repo", []byte("script v2"))
	if !strings.HasPrefix(o1, "outputs:") {
		t.Errorf("OutputsKey unexpected: %s", o1)
	}
	if o1 == o2 {
		t.Error("Different scripts should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "drvgraph:")
	if key := scoped.QueryKey("/nix/store/a.drv"); !strings.HasPrefix(key, "drvgraph:query:") {
		t.Errorf("ScopedKeyer QueryKey should be prefixed: %s", key)
	}
	if key := scoped.OutputsKey(".", nil); !strings.HasPrefix(key, "drvgraph:outputs:") {
		t.Errorf("ScopedKeyer OutputsKey should be prefixed: %s", key)
	}

	// Should use DefaultKeyer when inner is nil
	nilInner := NewScopedKeyer(nil, "p:")
	if got, want := nilInner.QueryKey("x"), "p:"+NewDefaultKeyer().QueryKey("x"); got != want {
		t.Errorf("nil inner QueryKey = %s, want %s", got, want)
	}
}
