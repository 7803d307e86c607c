package getter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/blobapi"
)

// AzBlobGetter serves azblob:// sources through the Azure Blob SDK.
// Credentials come from the default Azure credential chain, loaded on
// first use. The locator authority is the storage account, as a bare
// name or a full blob endpoint host; the path is container/blob.
type AzBlobGetter struct {
	mu      sync.Mutex
	api     blobapi.Client
	clients map[string]blobapi.Client
	cred    *azidentity.DefaultAzureCredential
}

// AzBlobOption configures an AzBlobGetter.
type AzBlobOption func(*AzBlobGetter)

// WithAzBlobClient injects a preconfigured client, used for every
// account.
func WithAzBlobClient(c blobapi.Client) AzBlobOption {
	return func(g *AzBlobGetter) { g.api = c }
}

// NewAzBlobGetter creates the Azure Blob getter.
func NewAzBlobGetter(opts ...AzBlobOption) *AzBlobGetter {
	g := &AzBlobGetter{clients: make(map[string]blobapi.Client)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Matches reports true for azblob sources.
func (g *AzBlobGetter) Matches(loc *Locator) bool {
	return loc.Scheme == SchemeAzureBlob
}

// Fetch downloads the blob into staging.
func (g *AzBlobGetter) Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
	container, blob, found := strings.Cut(strings.Trim(loc.Path, "/"), "/")
	if loc.Authority == "" || !found || container == "" || blob == "" {
		return geterrors.Newf("azblob", geterrors.KindInvalidLocator, "%q does not name an account, container and blob", loc.Raw)
	}

	api, err := g.client(loc.Authority)
	if err != nil {
		return geterrors.New("azblob", geterrors.KindAuthentication, err)
	}

	resp, err := api.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return geterrors.New("azblob", classifyAzBlobErr(err), err)
	}
	defer resp.Body.Close()

	if _, err := st.WriteFrom(resp.Body); err != nil {
		return geterrors.New("azblob", classifyAzBlobErr(err), err)
	}
	return nil
}

// serviceURL derives the blob endpoint for an account reference, which
// may be a bare account name or a full host.
func serviceURL(account string) string {
	if strings.Contains(account, ".") {
		return "https://" + account
	}
	return "https://" + account + ".blob.core.windows.net"
}

// client returns the injected client or the cached per-account one,
// built with the default credential chain on first use.
func (g *AzBlobGetter) client(account string) (blobapi.Client, error) {
	if g.api != nil {
		return g.api, nil
	}
	endpoint := serviceURL(account)

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[endpoint]; ok {
		return c, nil
	}
	if g.cred == nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, err
		}
		g.cred = cred
	}
	c, err := azblob.NewClient(endpoint, g.cred, nil)
	if err != nil {
		return nil, err
	}
	g.clients[endpoint] = c
	return c, nil
}

// classifyAzBlobErr maps Azure Blob failures by storage error code,
// falling back to the response status.
func classifyAzBlobErr(err error) geterrors.Kind {
	if kind, ok := classifyContext(err); ok {
		return kind
	}
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return geterrors.KindNotFound
	case bloberror.HasCode(err,
		bloberror.AuthenticationFailed,
		bloberror.AuthorizationFailure,
		bloberror.InvalidAuthenticationInfo,
		bloberror.InsufficientAccountPermissions):
		return geterrors.KindAuthentication
	case bloberror.HasCode(err, bloberror.ServerBusy, bloberror.OperationTimedOut, bloberror.InternalError):
		return geterrors.KindTransientTransport
	}
	var rerr *azcore.ResponseError
	if errors.As(err, &rerr) {
		switch {
		case rerr.StatusCode == http.StatusNotFound:
			return geterrors.KindNotFound
		case rerr.StatusCode == http.StatusUnauthorized || rerr.StatusCode == http.StatusForbidden:
			return geterrors.KindAuthentication
		case rerr.StatusCode == http.StatusRequestTimeout || rerr.StatusCode == http.StatusTooManyRequests || rerr.StatusCode >= 500:
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
