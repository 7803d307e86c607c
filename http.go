package getter

import (
	"context"
	"errors"
	"net"
	"net/http"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
)

// maxRedirects caps the redirect chains the HTTP getter will follow.
const maxRedirects = 10

var errTooManyRedirects = errors.New("too many redirects")

// HTTPGetter serves http:// and https:// sources with a single GET
// request, streaming the response body into staging.
type HTTPGetter struct {
	client *http.Client
}

// HTTPOption configures an HTTPGetter.
type HTTPOption func(*HTTPGetter)

// WithHTTPClient replaces the underlying HTTP client, for custom
// transports, proxies or test servers.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGetter) { g.client = c }
}

// NewHTTPGetter creates the HTTP getter.
func NewHTTPGetter(opts ...HTTPOption) *HTTPGetter {
	g := &HTTPGetter{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Matches reports true for http and https sources.
func (g *HTTPGetter) Matches(loc *Locator) bool {
	return loc.Scheme == SchemeHTTP || loc.Scheme == SchemeHTTPS
}

// Fetch issues the GET and streams the body into staging. The request
// uses the source URL verbatim so server-side query strings, presigned
// URLs included, survive untouched.
func (g *HTTPGetter) Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
	if loc.Authority == "" {
		return geterrors.Newf("http", geterrors.KindInvalidLocator, "no host in %q", loc.Raw)
	}
	target := loc.remote
	if target == "" {
		target = loc.Raw
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return geterrors.New("http", geterrors.KindInvalidLocator, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return geterrors.New("http", classifyHTTPErr(err), err)
	}
	defer resp.Body.Close()

	if kind, failed := classifyHTTPStatus(resp.StatusCode); failed {
		return geterrors.Newf("http", kind, "%s returned %s", loc.Authority, resp.Status)
	}

	if _, err := st.WriteFrom(resp.Body); err != nil {
		return geterrors.New("http", classifyHTTPErr(err), err)
	}
	return nil
}

// classifyHTTPErr maps transport-level failures. Network trouble is
// retryable; context termination and redirect loops are not.
func classifyHTTPErr(err error) geterrors.Kind {
	if kind, ok := classifyContext(err); ok {
		return kind
	}
	if errors.Is(err, errTooManyRedirects) {
		return geterrors.KindInvalidLocator
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

// classifyHTTPStatus maps response status codes to failure kinds. The
// second return is false for success codes.
func classifyHTTPStatus(code int) (geterrors.Kind, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusNotFound || code == http.StatusGone:
		return geterrors.KindNotFound, true
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusProxyAuthRequired:
		return geterrors.KindAuthentication, true
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return geterrors.KindTransientTransport, true
	default:
		return geterrors.KindInvalidLocator, true
	}
}
