package getter

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/testutil"
)

// newTestClient builds a client around a single getter, an in-memory
// filesystem and a clock whose waits return immediately.
func newTestClient(t *testing.T, g Getter) (*Client, billy.Filesystem, *testutil.RecordingClock) {
	t.Helper()
	fsys := memfs.New()
	clk := &testutil.RecordingClock{}
	r := NewRegistry()
	r.Register(g, 0)
	c, err := New(
		WithRegistry(r),
		WithFilesystem(fsys),
		WithClock(clk),
		WithBackoff(10*time.Millisecond, 80*time.Millisecond),
	)
	require.NoError(t, err)
	return c, fsys, clk
}

func writeGetter(content string) *fakeGetter {
	return &fakeGetter{
		fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
			_, err := st.WriteFrom(strings.NewReader(content))
			return err
		},
	}
}

func TestClientGetWritesDestination(t *testing.T) {
	c, fsys, clk := newTestClient(t, writeGetter("hello"))

	res, err := c.Get(context.Background(), "http://example.com/f.txt", "/dl/f.txt")
	require.NoError(t, err)

	assert.Equal(t, "/dl/f.txt", res.Destination)
	assert.Equal(t, int64(5), res.BytesWritten)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []byte("hello"), readFile(t, fsys, "/dl/f.txt"))
	assert.Empty(t, clk.Delays())
}

func TestClientGetValidation(t *testing.T) {
	c, _, _ := newTestClient(t, writeGetter("x"))

	tests := []struct {
		name        string
		source      string
		destination string
		wantKind    geterrors.Kind
	}{
		{name: "empty source", source: "", destination: "/dl/out", wantKind: geterrors.KindInvalidLocator},
		{name: "empty destination", source: "http://example.com/f", destination: "", wantKind: geterrors.KindDestinationNotCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Get(context.Background(), tt.source, tt.destination)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, geterrors.KindOf(err))
		})
	}
}

func TestClientGetUnsupportedScheme(t *testing.T) {
	c, fsys, _ := newTestClient(t, &fakeGetter{matches: matchScheme(SchemeGit)})

	_, err := c.Get(context.Background(), "weird://thing", "/dl/out")
	require.Error(t, err)
	assert.True(t, geterrors.IsUnsupportedSource(err))

	_, statErr := fsys.Lstat("/dl/out")
	assert.True(t, os.IsNotExist(statErr))
}

func TestClientGetRefusesExistingDestination(t *testing.T) {
	var calls int32
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}}
	c, fsys, _ := newTestClient(t, g)
	require.NoError(t, util.WriteFile(fsys, "/dl/f.txt", []byte("old"), 0o644))

	_, err := c.Get(context.Background(), "http://example.com/f.txt", "/dl/f.txt")
	require.Error(t, err)
	assert.True(t, geterrors.IsDestinationExists(err))
	assert.Zero(t, atomic.LoadInt32(&calls), "fetch should not run when the destination exists")
	assert.Equal(t, []byte("old"), readFile(t, fsys, "/dl/f.txt"))
}

func TestClientGetOverwrite(t *testing.T) {
	c, fsys, _ := newTestClient(t, writeGetter("fresh"))
	require.NoError(t, util.WriteFile(fsys, "/dl/f.txt", []byte("stale"), 0o644))

	res, err := c.Get(context.Background(), "http://example.com/f.txt", "/dl/f.txt", Overwrite(true))
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.BytesWritten)
	assert.Equal(t, []byte("fresh"), readFile(t, fsys, "/dl/f.txt"))
}

func TestClientGetRetriesTransientFailures(t *testing.T) {
	var calls int32
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return geterrors.Newf("http", geterrors.KindTransientTransport, "connection reset")
		}
		_, err := st.WriteFrom(strings.NewReader("eventually"))
		return err
	}}
	c, fsys, clk := newTestClient(t, g)

	res, err := c.Get(context.Background(), "http://example.com/f", "/dl/f")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []byte("eventually"), readFile(t, fsys, "/dl/f"))

	delays := clk.Delays()
	require.Len(t, delays, 2)
	assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], delays[0], "backoff should not shrink")
	for _, d := range delays {
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}

func TestClientGetDoesNotRetryFatalFailures(t *testing.T) {
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		return geterrors.Newf("http", geterrors.KindNotFound, "no such thing")
	}}
	c, _, clk := newTestClient(t, g)

	_, err := c.Get(context.Background(), "http://example.com/f", "/dl/f")
	require.Error(t, err)
	assert.True(t, geterrors.IsNotFound(err))
	assert.Equal(t, 1, geterrors.AttemptsFrom(err))
	assert.Empty(t, clk.Delays())
}

func TestClientGetRetriesExhausted(t *testing.T) {
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		return geterrors.Newf("http", geterrors.KindTransientTransport, "still down")
	}}
	c, fsys, clk := newTestClient(t, g)

	_, err := c.Get(context.Background(), "http://example.com/f", "/dl/f", Retries(2))
	require.Error(t, err)
	assert.Equal(t, geterrors.KindTransientTransport, geterrors.KindOf(err))
	assert.Equal(t, 3, geterrors.AttemptsFrom(err))
	assert.Len(t, clk.Delays(), 2)

	_, statErr := fsys.Lstat("/dl/f")
	assert.True(t, os.IsNotExist(statErr), "failed download must not create the destination")
	entries, readErr := fsys.ReadDir("/dl")
	require.NoError(t, readErr)
	assert.Empty(t, entries, "staging leftovers in destination directory")
}

func TestClientGetZeroRetries(t *testing.T) {
	var calls int32
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		atomic.AddInt32(&calls, 1)
		return geterrors.Newf("http", geterrors.KindTransientTransport, "down")
	}}
	c, _, clk := newTestClient(t, g)

	_, err := c.Get(context.Background(), "http://example.com/f", "/dl/f", Retries(0))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, clk.Delays())
}

func TestClientGetCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		return geterrors.Newf("http", geterrors.KindTransientTransport, "down")
	}}
	c, _, _ := newTestClient(t, g)

	_, err := c.Get(ctx, "http://example.com/f", "/dl/f")
	require.Error(t, err)
	assert.Equal(t, geterrors.KindCanceled, geterrors.KindOf(err))
}

func TestClientGetPerAttemptTimeout(t *testing.T) {
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		<-ctx.Done()
		kind, _ := classifyContext(ctx.Err())
		return geterrors.New("slow", kind, ctx.Err())
	}}
	c, _, clk := newTestClient(t, g)

	_, err := c.Get(context.Background(), "http://example.com/f", "/dl/f",
		Timeout(5*time.Millisecond), Retries(1))
	require.Error(t, err)
	assert.Equal(t, geterrors.KindTimeout, geterrors.KindOf(err))
	assert.Equal(t, 2, geterrors.AttemptsFrom(err))
	assert.Len(t, clk.Delays(), 1)
}

func TestClientGetResetsStagingBetweenAttempts(t *testing.T) {
	var calls int32
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = st.WriteFrom(strings.NewReader("partial garbage"))
			return geterrors.Newf("http", geterrors.KindTransientTransport, "broke mid-stream")
		}
		_, err := st.WriteFrom(strings.NewReader("ok"))
		return err
	}}
	c, fsys, _ := newTestClient(t, g)

	res, err := c.Get(context.Background(), "http://example.com/f", "/dl/f")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int64(2), res.BytesWritten)
	assert.Equal(t, []byte("ok"), readFile(t, fsys, "/dl/f"))
}

func TestClientGetPartialFetchLeavesNothing(t *testing.T) {
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		_, _ = st.WriteFrom(strings.NewReader("half a dow"))
		return geterrors.Newf("http", geterrors.KindNotFound, "gone mid-transfer")
	}}
	c, fsys, _ := newTestClient(t, g)

	_, err := c.Get(context.Background(), "http://example.com/f", "/dl/f")
	require.Error(t, err)

	_, statErr := fsys.Lstat("/dl/f")
	assert.True(t, os.IsNotExist(statErr))
	entries, readErr := fsys.ReadDir("/dl")
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestClientGetHTTPNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, fsys, clk := newTestClient(t, NewHTTPGetter(WithHTTPClient(srv.Client())))

	_, err := c.Get(context.Background(), srv.URL+"/missing.txt", "/dl/missing.txt")
	require.Error(t, err)
	assert.True(t, geterrors.IsNotFound(err))
	assert.Equal(t, 1, geterrors.AttemptsFrom(err))
	assert.Empty(t, clk.Delays())

	_, statErr := fsys.Lstat("/dl/missing.txt")
	assert.True(t, os.IsNotExist(statErr))
}

func TestClientGetProgress(t *testing.T) {
	content := strings.Repeat("data!", 100)
	c, _, _ := newTestClient(t, writeGetter(content))

	var total int64
	res, err := c.Get(context.Background(), "http://example.com/f", "/dl/f",
		Progress(func(n int64) { total += n }))
	require.NoError(t, err)
	assert.Equal(t, res.BytesWritten, total)
	assert.Equal(t, int64(len(content)), total)
}

func TestClientGetWithLogger(t *testing.T) {
	var calls int32
	g := &fakeGetter{fetch: func(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return geterrors.Newf("http", geterrors.KindTransientTransport, "flaky")
		}
		_, err := st.WriteFrom(strings.NewReader("ok"))
		return err
	}}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRegistry()
	r.Register(g, 0)
	c, err := New(
		WithRegistry(r),
		WithFilesystem(memfs.New()),
		WithClock(&testutil.RecordingClock{}),
		WithBackoff(time.Millisecond, time.Millisecond),
		WithLogger(logger),
	)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "http://example.com/f", "/dl/f")
	require.NoError(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "retrying fetch")
	assert.Contains(t, logs, "download complete")
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "nil registry", opts: []Option{WithRegistry(nil)}},
		{name: "nil filesystem", opts: []Option{WithFilesystem(nil)}},
		{name: "nil clock", opts: []Option{WithClock(nil)}},
		{name: "negative retries", opts: []Option{WithRetries(-1)}},
		{name: "zero backoff", opts: []Option{WithBackoff(0, time.Second)}},
		{name: "inverted backoff", opts: []Option{WithBackoff(time.Second, time.Millisecond)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultRetries, c.defaults.Retries)
	assert.Equal(t, DefaultBackoffMin, c.backoffMin)
	assert.Equal(t, DefaultBackoffMax, c.backoffMax)
	assert.NotNil(t, c.registry)
	assert.NotNil(t, c.fs)
	assert.NotNil(t, c.clk)
}

func TestPackageLevelGet(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("local bytes"), 0o644))
	dest := filepath.Join(t.TempDir(), "dest.txt")

	res, err := Get(context.Background(), src, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, res.Destination)
	assert.Equal(t, int64(len("local bytes")), res.BytesWritten)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("local bytes"), data)

	assert.Same(t, Default(), Default())
}
