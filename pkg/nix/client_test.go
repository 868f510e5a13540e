package nix

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/drvgraph/pkg/cache"
	derrors "github.com/matzehuels/drvgraph/pkg/errors"
)

type call struct {
	name string
	args []string
}

// fakeExecutor returns canned output keyed by program name.
type fakeExecutor struct {
	mu     sync.Mutex
	calls  []call
	output map[string][]byte
	err    error
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return f.output[name], nil
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

const outputsJSON = `[
  {"drvPath":"/nix/store/aaa-hello-2.12.drv","flakePath":"packages.x86_64-linux.hello"},
  {"drvPath":"/nix/store/bbb-test.drv","flakePath":"checks.x86_64-linux.test"}
]`

func TestFlakeOutputs(t *testing.T) {
	fake := &fakeExecutor{output: map[string][]byte{"nix": []byte(outputsJSON)}}
	c := &Client{Exec: fake, Logger: quietLogger()}

	outputs, err := c.FlakeOutputs(context.Background(), "github:owner/repo", false)
	require.NoError(t, err)
	assert.Equal(t, []FlakeOutput{
		{DrvPath: "/nix/store/aaa-hello-2.12.drv", FlakePath: "packages.x86_64-linux.hello"},
		{DrvPath: "/nix/store/bbb-test.drv", FlakePath: "checks.x86_64-linux.test"},
	}, outputs)

	require.Len(t, fake.calls, 1)
	got := fake.calls[0]
	assert.Equal(t, "nix", got.name)
	assert.Equal(t, []string{
		"eval", "--json",
		"--include", "nixpkgs=flake:nixpkgs",
		"--impure",
		"--apply", string(FlakeOutputsScript()),
		"github:owner/repo#.",
	}, got.args)
}

func TestFlakeOutputsScriptEmbedded(t *testing.T) {
	script := string(FlakeOutputsScript())
	assert.Contains(t, script, "drvPath")
	assert.Contains(t, script, "flakePath")
	assert.Contains(t, script, `"packages"`)
	assert.Contains(t, script, `"checks"`)
}

func TestFlakeOutputsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"not json", "error: flake has no outputs"},
		{"wrong shape", `{"drvPath": "/nix/store/a.drv"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeExecutor{output: map[string][]byte{"nix": []byte(tt.output)}}
			c := &Client{Exec: fake, Logger: quietLogger()}
			_, err := c.FlakeOutputs(context.Background(), ".", false)
			require.Error(t, err)
			assert.True(t, derrors.Is(err, derrors.ErrCodeMalformedOutput), "got %v", err)
		})
	}
}

func TestFlakeOutputsEmptyReference(t *testing.T) {
	c := &Client{Exec: &fakeExecutor{}, Logger: quietLogger()}
	_, err := c.FlakeOutputs(context.Background(), "", false)
	assert.True(t, derrors.Is(err, derrors.ErrCodeInvalidInput))
}

func TestFlakeOutputsCaching(t *testing.T) {
	ctx := context.Background()
	mem, err := cache.NewMemoryCache(0)
	require.NoError(t, err)

	fake := &fakeExecutor{output: map[string][]byte{"nix": []byte(outputsJSON)}}
	c := &Client{Exec: fake, Cache: mem, Logger: quietLogger()}

	first, err := c.FlakeOutputs(ctx, ".", false)
	require.NoError(t, err)
	second, err := c.FlakeOutputs(ctx, ".", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.count(), "second evaluation should be served from cache")

	_, err = c.FlakeOutputs(ctx, ".", true)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.count(), "refresh should bypass the cache")
}

func TestFlakeOutputsMalformedIsNotCached(t *testing.T) {
	ctx := context.Background()
	mem, err := cache.NewMemoryCache(0)
	require.NoError(t, err)

	fake := &fakeExecutor{output: map[string][]byte{"nix": []byte(`{"not":"a list"}`)}}
	c := &Client{Exec: fake, Cache: mem, Logger: quietLogger()}

	_, err = c.FlakeOutputs(ctx, ".", false)
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.ErrCodeMalformedOutput), "got %v", err)

	fake.output["nix"] = []byte(outputsJSON)
	outputs, err := c.FlakeOutputs(ctx, ".", false)
	require.NoError(t, err)
	assert.Len(t, outputs, 2)
	assert.Equal(t, 2, fake.count(), "failed evaluation must not be replayed from cache")
}

func TestFlakeOutputsDiscardsUndecodableEntry(t *testing.T) {
	ctx := context.Background()
	mem, err := cache.NewMemoryCache(0)
	require.NoError(t, err)

	key := cache.DefaultKeyer{}.OutputsKey(".", FlakeOutputsScript())
	require.NoError(t, mem.Set(ctx, key, []byte("null"), time.Hour))

	fake := &fakeExecutor{output: map[string][]byte{"nix": []byte(outputsJSON)}}
	c := &Client{Exec: fake, Cache: mem, Logger: quietLogger()}

	outputs, err := c.FlakeOutputs(ctx, ".", false)
	require.NoError(t, err)
	assert.Len(t, outputs, 2)
	assert.Equal(t, 1, fake.count())

	data, ok, err := mem.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, outputsJSON, string(data))
}

func TestFlakeOutputsEmptyList(t *testing.T) {
	fake := &fakeExecutor{output: map[string][]byte{"nix": []byte("[]")}}
	c := &Client{Exec: fake, Logger: quietLogger()}
	outputs, err := c.FlakeOutputs(context.Background(), ".", false)
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

func TestQueryGraph(t *testing.T) {
	ctx := context.Background()
	dump := "digraph G {\n\"a.drv\" -> \"b.drv\" [color = \"red\"];\n}\n"
	mem, err := cache.NewMemoryCache(0)
	require.NoError(t, err)

	fake := &fakeExecutor{output: map[string][]byte{"nix-store": []byte(dump)}}
	c := &Client{Exec: fake, Cache: mem, Logger: quietLogger()}

	out, err := c.QueryGraph(ctx, "/nix/store/b.drv")
	require.NoError(t, err)
	assert.Equal(t, dump, string(out))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "nix-store", fake.calls[0].name)
	assert.Equal(t, []string{"--query", "/nix/store/b.drv", "--graph"}, fake.calls[0].args)

	_, err = c.QueryGraph(ctx, "/nix/store/b.drv")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count())
}

func TestQueryGraphCustomPrograms(t *testing.T) {
	fake := &fakeExecutor{output: map[string][]byte{"/opt/nix/bin/nix-store": []byte("")}}
	c := &Client{Exec: fake, NixStore: "/opt/nix/bin/nix-store", Logger: quietLogger()}
	_, err := c.QueryGraph(context.Background(), "/nix/store/a.drv")
	require.NoError(t, err)
	assert.Equal(t, "/opt/nix/bin/nix-store", fake.calls[0].name)
}

func TestQueryGraphInvalidUTF8(t *testing.T) {
	mem, err := cache.NewMemoryCache(0)
	require.NoError(t, err)
	fake := &fakeExecutor{output: map[string][]byte{"nix-store": {0xff, 0xfe, '"'}}}
	c := &Client{Exec: fake, Cache: mem, Logger: quietLogger()}

	_, err = c.QueryGraph(context.Background(), "/nix/store/a.drv")
	assert.True(t, derrors.Is(err, derrors.ErrCodeMalformedOutput), "got %v", err)
	assert.Zero(t, mem.(*cache.MemoryCache).Len(), "invalid output must not be cached")
}

func TestQueryGraphCommandFailure(t *testing.T) {
	failure := derrors.Wrap(derrors.ErrCodeCommandFailed,
		&derrors.CommandError{Command: "nix-store", ExitCode: 1}, "nix-store failed")
	c := &Client{Exec: &fakeExecutor{err: failure}, Logger: quietLogger()}

	_, err := c.QueryGraph(context.Background(), "/nix/store/a.drv")
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.ErrCodeCommandFailed))

	var cerr *derrors.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 1, cerr.ExitCode)
}

// deadlineExecutor reports whether the context it receives has a deadline.
type deadlineExecutor struct {
	deadline time.Duration
	set      bool
}

func (d *deadlineExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		d.set = true
		d.deadline = time.Until(dl)
	}
	return nil, nil
}

func TestClientTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantSet bool
		max     time.Duration
	}{
		{"default", 0, true, DefaultTimeout},
		{"custom", time.Minute, true, time.Minute},
		{"disabled", -1, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &deadlineExecutor{}
			c := &Client{Exec: d, Timeout: tt.timeout, Logger: quietLogger()}
			_, err := c.QueryGraph(context.Background(), "/nix/store/a.drv")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSet, d.set)
			if tt.wantSet {
				assert.LessOrEqual(t, d.deadline, tt.max)
				assert.Greater(t, d.deadline, tt.max-time.Minute/2)
			}
		})
	}
}

func TestExecExecutor(t *testing.T) {
	requireShell(t)
	e := ExecExecutor{Logger: quietLogger()}

	out, err := e.Run(context.Background(), "sh", "-c", "echo '\"a\" -> \"b\"'")
	require.NoError(t, err)
	assert.Equal(t, "\"a\" -> \"b\"\n", string(out))

	_, err = e.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.ErrCodeCommandFailed))
	var cerr *derrors.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 3, cerr.ExitCode)
	assert.Equal(t, "broken", cerr.Stderr)
	assert.True(t, strings.HasPrefix(cerr.Error(), "sh -c"))
}

func TestExecExecutorStdinIsNull(t *testing.T) {
	requireShell(t)
	out, err := ExecExecutor{Logger: quietLogger()}.Run(context.Background(), "sh", "-c", "cat; echo done")
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(out))
}

func TestExecExecutorTimeout(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ExecExecutor{Logger: quietLogger()}.Run(ctx, "sh", "-c", "sleep 5")
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.ErrCodeTimeout), "got %v", err)
}

func TestExecExecutorCanceledIsQuiet(t *testing.T) {
	requireShell(t)
	var buf strings.Builder
	logger := log.New(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := ExecExecutor{Logger: logger}.Run(ctx, "sh", "-c", "sleep 5")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, derrors.Is(err, derrors.ErrCodeCommandFailed))
	assert.NotContains(t, buf.String(), "command failed")

	_, err = ExecExecutor{Logger: logger}.Run(context.Background(), "sh", "-c", "exit 2")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "command failed")
}

func TestExecExecutorMissingProgram(t *testing.T) {
	_, err := ExecExecutor{Logger: quietLogger()}.Run(context.Background(), "drvgraph-no-such-program")
	require.Error(t, err)
	var cerr *derrors.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, -1, cerr.ExitCode)
}
