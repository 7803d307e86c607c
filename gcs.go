package getter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/gcsapi"
)

// GCSGetter serves gs:// sources through the Cloud Storage SDK.
// Credentials come from Application Default Credentials, loaded on
// first use.
type GCSGetter struct {
	mu  sync.Mutex
	api gcsapi.Client
}

// GCSOption configures a GCSGetter.
type GCSOption func(*GCSGetter)

// WithGCSClient injects a preconfigured client. The getter then never
// touches the credential chain.
func WithGCSClient(c gcsapi.Client) GCSOption {
	return func(g *GCSGetter) { g.api = c }
}

// NewGCSGetter creates the Cloud Storage getter.
func NewGCSGetter(opts ...GCSOption) *GCSGetter {
	g := &GCSGetter{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Matches reports true for gs sources.
func (g *GCSGetter) Matches(loc *Locator) bool {
	return loc.Scheme == SchemeGCS
}

// Fetch downloads the object into staging. The locator's authority is
// the bucket and its path the object name.
func (g *GCSGetter) Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
	bucket, object := loc.Authority, loc.Path
	if bucket == "" || object == "" {
		return geterrors.Newf("gcs", geterrors.KindInvalidLocator, "%q does not name a bucket and object", loc.Raw)
	}

	api, err := g.client(ctx)
	if err != nil {
		return geterrors.New("gcs", geterrors.KindAuthentication, err)
	}

	r, err := api.NewReader(ctx, bucket, object)
	if err != nil {
		return geterrors.New("gcs", classifyGCSErr(err), err)
	}
	defer r.Close()

	if _, err := st.WriteFrom(r); err != nil {
		return geterrors.New("gcs", classifyGCSErr(err), err)
	}
	return nil
}

// client returns the injected client or lazily builds the default one.
func (g *GCSGetter) client(ctx context.Context) (gcsapi.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.api == nil {
		c, err := storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		g.api = &gcsapi.GoogleClient{C: c}
	}
	return g.api, nil
}

// classifyGCSErr maps Cloud Storage failures.
func classifyGCSErr(err error) geterrors.Kind {
	if kind, ok := classifyContext(err); ok {
		return kind
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return geterrors.KindNotFound
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return geterrors.KindNotFound
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return geterrors.KindAuthentication
		case gerr.Code == http.StatusRequestTimeout || gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return geterrors.KindTransientTransport
		}
		return geterrors.KindUnknown
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return geterrors.KindTimeout
		}
		return geterrors.KindTransientTransport
	}
	return geterrors.KindUnknown
}
