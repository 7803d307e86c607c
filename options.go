package getter

import (
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/juju/clock"
)

// Defaults applied by New when no option overrides them.
const (
	// DefaultRetries is the number of reattempts after the first failed
	// fetch.
	DefaultRetries = 3

	// DefaultBackoffMin is the delay before the first reattempt.
	DefaultBackoffMin = 500 * time.Millisecond

	// DefaultBackoffMax caps exponential backoff growth.
	DefaultBackoffMax = 30 * time.Second
)

// ProgressFunc observes transfer progress. It is called with the number
// of bytes written since the previous call, from the goroutine
// performing the transfer.
type ProgressFunc func(n int64)

// Options are the effective per-request settings after client defaults
// and per-call overrides are applied. Getters receive them read-only.
type Options struct {
	// Retries is the number of reattempts after the first failed fetch.
	// Only retryable failures consume the budget.
	Retries int

	// Timeout bounds each individual fetch attempt. Zero means no
	// per-attempt bound; the caller's context still applies.
	Timeout time.Duration

	// Overwrite allows replacing an existing destination file.
	Overwrite bool

	// Progress, when set, observes bytes as they reach staging.
	Progress ProgressFunc
}

// GetOption overrides one setting for a single request.
type GetOption func(*Options)

// Retries overrides the reattempt budget for this request.
func Retries(n int) GetOption {
	return func(o *Options) { o.Retries = n }
}

// Timeout bounds each fetch attempt of this request.
func Timeout(d time.Duration) GetOption {
	return func(o *Options) { o.Timeout = d }
}

// Overwrite sets whether this request may replace an existing
// destination.
func Overwrite(allow bool) GetOption {
	return func(o *Options) { o.Overwrite = allow }
}

// Progress attaches a progress callback to this request.
func Progress(fn ProgressFunc) GetOption {
	return func(o *Options) { o.Progress = fn }
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	registry   *Registry
	fs         billy.Filesystem
	logger     *slog.Logger
	clk        clock.Clock
	backoffMin time.Duration
	backoffMax time.Duration
	defaults   Options
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		registry:   DefaultRegistry(),
		fs:         osfs.New("/"),
		clk:        clock.WallClock,
		backoffMin: DefaultBackoffMin,
		backoffMax: DefaultBackoffMax,
		defaults:   Options{Retries: DefaultRetries},
	}
}

// WithRegistry sets the registry consulted for every request.
func WithRegistry(r *Registry) Option {
	return func(o *clientOptions) { o.registry = r }
}

// WithFilesystem sets the filesystem destinations are written to. The
// default is the host OS filesystem.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(o *clientOptions) { o.fs = fsys }
}

// WithLogger enables structured logging of request milestones.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithClock injects the time source used for backoff waits between
// reattempts.
func WithClock(c clock.Clock) Option {
	return func(o *clientOptions) { o.clk = c }
}

// WithBackoff sets the initial and maximum delay between reattempts.
func WithBackoff(initial, max time.Duration) Option {
	return func(o *clientOptions) {
		o.backoffMin = initial
		o.backoffMax = max
	}
}

// WithRetries sets the default reattempt budget for requests.
func WithRetries(n int) Option {
	return func(o *clientOptions) { o.defaults.Retries = n }
}

// WithTimeout sets the default per-attempt timeout for requests.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.defaults.Timeout = d }
}

// WithOverwrite sets the default overwrite behavior for requests.
func WithOverwrite(allow bool) Option {
	return func(o *clientOptions) { o.defaults.Overwrite = allow }
}

// WithProgress sets the default progress callback for requests.
func WithProgress(fn ProgressFunc) Option {
	return func(o *clientOptions) { o.defaults.Progress = fn }
}
