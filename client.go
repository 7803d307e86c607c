package getter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/juju/clock"
	"github.com/juju/retry"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
)

// Client dispatches download requests to registered getters and owns
// the staged-commit lifecycle of the destination. A Client is safe for
// concurrent use.
type Client struct {
	registry   *Registry
	fs         billy.Filesystem
	logger     *slog.Logger
	clk        clock.Clock
	backoffMin time.Duration
	backoffMax time.Duration
	defaults   Options
}

// New creates a Client. Without options it uses the default registry,
// the host OS filesystem, exponential backoff between 500ms and 30s,
// and three reattempts per request.
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.registry == nil {
		return nil, fmt.Errorf("getter: registry cannot be nil")
	}
	if cfg.fs == nil {
		return nil, fmt.Errorf("getter: filesystem cannot be nil")
	}
	if cfg.clk == nil {
		return nil, fmt.Errorf("getter: clock cannot be nil")
	}
	if cfg.defaults.Retries < 0 {
		return nil, fmt.Errorf("getter: retries cannot be negative")
	}
	if cfg.backoffMin <= 0 || cfg.backoffMax < cfg.backoffMin {
		return nil, fmt.Errorf("getter: invalid backoff bounds [%v, %v]", cfg.backoffMin, cfg.backoffMax)
	}

	return &Client{
		registry:   cfg.registry,
		fs:         cfg.fs,
		logger:     cfg.logger,
		clk:        cfg.clk,
		backoffMin: cfg.backoffMin,
		backoffMax: cfg.backoffMax,
		defaults:   cfg.defaults,
	}, nil
}

// Get downloads source into destination and returns what was written.
// The destination sees the content all at once or not at all: bytes
// land in a staging file next to it and a rename publishes them only
// after the fetch succeeds. Retryable failures are reattempted with
// exponential backoff up to the configured budget.
func (c *Client) Get(ctx context.Context, source, destination string, opts ...GetOption) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := c.defaults
	for _, opt := range opts {
		opt(&options)
	}
	if options.Retries < 0 {
		options.Retries = 0
	}

	if source == "" {
		return nil, geterrors.Newf("get", geterrors.KindInvalidLocator, "source cannot be empty")
	}
	if destination == "" {
		return nil, geterrors.Newf("get", geterrors.KindDestinationNotCreated, "destination cannot be empty").WithSource(source)
	}
	dest, err := filepath.Abs(destination)
	if err != nil {
		return nil, geterrors.New("get", geterrors.KindDestinationNotCreated, err).WithSource(source)
	}

	loc := Parse(source)
	if c.logger != nil {
		c.logger.DebugContext(ctx, "parsed source",
			"source", source,
			"scheme", string(loc.Scheme),
		)
	}

	g, ok := c.registry.Select(loc)
	if !ok {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "no getter for source",
				"source", source,
				"scheme", string(loc.Scheme),
			)
		}
		return nil, geterrors.Newf("get", geterrors.KindUnsupportedSource, "no getter registered for scheme %q", loc.Scheme).WithSource(source)
	}

	if !options.Overwrite {
		if _, err := c.fs.Lstat(dest); err == nil {
			return nil, geterrors.Newf("get", geterrors.KindDestinationExists, "destination %s already exists", dest).WithSource(source)
		} else if !os.IsNotExist(err) {
			return nil, geterrors.New("get", geterrors.KindDestinationNotCreated, err).WithSource(source)
		}
	}

	st, err := newStaging(c.fs, dest, options.Progress)
	if err != nil {
		return nil, geterrors.New("get", geterrors.KindDestinationNotCreated, err).WithSource(source)
	}
	defer st.discard()

	attempts := 0
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			if attempts > 0 {
				if rerr := st.reset(); rerr != nil {
					return geterrors.New("get", geterrors.KindDestinationNotCreated, rerr)
				}
			}
			attempts++
			return c.fetchOnce(ctx, g, loc, st, options)
		},
		IsFatalError: func(err error) bool {
			return !geterrors.IsRetryable(err)
		},
		NotifyFunc: func(lastErr error, attempt int) {
			if c.logger != nil {
				c.logger.WarnContext(ctx, "retrying fetch",
					"source", source,
					"attempt", attempt,
					"error", lastErr,
				)
			}
		},
		Attempts:    options.Retries + 1,
		Delay:       c.backoffMin,
		MaxDelay:    c.backoffMax,
		BackoffFunc: retry.ExpBackoff(c.backoffMin, c.backoffMax, 2.0, false),
		Clock:       c.clk,
		Stop:        ctx.Done(),
	})
	if err != nil {
		cause := err
		if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
			cause = retry.LastError(err)
		}
		// A dead caller context is the real outcome no matter which
		// attempt's error surfaced last.
		kind := geterrors.KindOf(cause)
		if k, ok := classifyContext(ctx.Err()); ok {
			kind = k
		}
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "download failed",
				"source", source,
				"destination", dest,
				"kind", string(kind),
				"attempts", attempts,
				"error", cause,
			)
		}
		return nil, geterrors.New("get", kind, cause).WithSource(source).WithAttempts(attempts)
	}

	n, err := st.commit(dest, options.Overwrite)
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "commit failed",
				"source", source,
				"destination", dest,
				"error", err,
			)
		}
		var gerr *geterrors.Error
		if errors.As(err, &gerr) {
			return nil, gerr.WithSource(source).WithAttempts(attempts)
		}
		return nil, geterrors.New("commit", geterrors.KindCommit, err).WithSource(source).WithAttempts(attempts)
	}

	if c.logger != nil {
		c.logger.InfoContext(ctx, "download complete",
			"source", source,
			"destination", dest,
			"bytes", n,
			"attempts", attempts,
		)
	}
	return &Result{Destination: dest, BytesWritten: n, Attempts: attempts}, nil
}

// fetchOnce runs one fetch attempt with the per-attempt timeout applied
// and ensures the resulting error carries a kind.
func (c *Client) fetchOnce(ctx context.Context, g Getter, loc *Locator, st *Staging, options Options) error {
	attemptCtx := ctx
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	err := g.Fetch(attemptCtx, loc, st, options)
	if err == nil {
		return nil
	}
	// Getters classify their own failures; bare context errors from
	// third-party getters still get the right kind here.
	if geterrors.KindOf(err) == geterrors.KindUnknown {
		if kind, ok := classifyContext(err); ok {
			return geterrors.New("fetch", kind, err)
		}
	}
	return err
}

var (
	defaultClientOnce sync.Once
	defaultClient     *Client
)

// Default returns the shared process-wide client.
func Default() *Client {
	defaultClientOnce.Do(func() {
		defaultClient, _ = New()
	})
	return defaultClient
}

// Get downloads source into destination using the default client.
func Get(ctx context.Context, source, destination string, opts ...GetOption) (*Result, error) {
	return Default().Get(ctx, source, destination, opts...)
}
