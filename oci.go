package getter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/errcode"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/orasapi"
)

// OCIGetter serves oci:// sources, staging the content blob of the
// referenced artifact. References without a tag or digest default to
// latest.
type OCIGetter struct {
	api       orasapi.Client
	username  string
	password  string
	plainHTTP bool
}

// OCIOption configures an OCIGetter.
type OCIOption func(*OCIGetter)

// WithOCIClient injects a preconfigured registry client.
func WithOCIClient(c orasapi.Client) OCIOption {
	return func(g *OCIGetter) { g.api = c }
}

// WithOCICredentials sets static credentials used for every registry.
// Without them the getter pulls anonymously.
func WithOCICredentials(username, password string) OCIOption {
	return func(g *OCIGetter) {
		g.username = username
		g.password = password
	}
}

// WithOCIPlainHTTP dials registries without TLS, for local registries.
func WithOCIPlainHTTP(enabled bool) OCIOption {
	return func(g *OCIGetter) { g.plainHTTP = enabled }
}

// NewOCIGetter creates the OCI artifact getter.
func NewOCIGetter(opts ...OCIOption) *OCIGetter {
	g := &OCIGetter{}
	for _, opt := range opts {
		opt(g)
	}
	if g.api == nil {
		r := &orasapi.Remote{PlainHTTP: g.plainHTTP}
		if g.username != "" {
			cred := auth.Credential{Username: g.username, Password: g.password}
			r.Credential = func(ctx context.Context, hostport string) (auth.Credential, error) {
				return cred, nil
			}
		}
		g.api = r
	}
	return g
}

// Matches reports true for oci sources.
func (g *OCIGetter) Matches(loc *Locator) bool {
	return loc.Scheme == SchemeOCI
}

// Fetch pulls the artifact and stages its content blob.
func (g *OCIGetter) Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
	if loc.Authority == "" || loc.Path == "" {
		return geterrors.Newf("oci", geterrors.KindInvalidLocator, "%q does not name a registry and repository", loc.Raw)
	}
	if loc.Subpath != "" || strings.Contains(loc.Path, "//") {
		return geterrors.Newf("oci", geterrors.KindInvalidLocator, "oci sources do not take a // file path")
	}

	reference := loc.Authority + "/" + loc.Path
	if _, ref, _ := orasapi.SplitReference(reference); ref == "" {
		reference += ":latest"
	}

	blob, err := g.api.FetchBlob(ctx, reference)
	if err != nil {
		return geterrors.New("oci", classifyOCIErr(err), err)
	}
	defer blob.Data.Close()

	if _, err := st.WriteFrom(blob.Data); err != nil {
		return geterrors.New("oci", classifyOCIErr(err), err)
	}
	return nil
}

// classifyOCIErr maps registry failures.
func classifyOCIErr(err error) geterrors.Kind {
	if kind, ok := classifyContext(err); ok {
		return kind
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return geterrors.KindNotFound
	}
	if errors.Is(err, auth.ErrBasicCredentialNotFound) {
		return geterrors.KindAuthentication
	}
	var resp *errcode.ErrorResponse
	if errors.As(err, &resp) {
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return geterrors.KindNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return geterrors.KindAuthentication
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
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
