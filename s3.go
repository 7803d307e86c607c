package getter

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	geterrors "github.com/input-output-hk/catalyst-forge-libs/getter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/s3api"
)

// S3Getter serves s3:// sources through the AWS SDK. Credentials come
// from the default chain, loaded on first use. S3-compatible endpoints
// such as MinIO are reached via the endpoint option, which switches the
// client to path-style addressing.
type S3Getter struct {
	mu       sync.Mutex
	api      s3api.Client
	cfg      *aws.Config
	endpoint string
}

// S3Option configures an S3Getter.
type S3Option func(*S3Getter)

// WithS3Client injects a preconfigured client. The getter then never
// touches the credential chain.
func WithS3Client(c s3api.Client) S3Option {
	return func(g *S3Getter) { g.api = c }
}

// WithS3Endpoint points the getter at an S3-compatible endpoint. A
// per-source endpoint option still takes precedence.
func WithS3Endpoint(endpoint string) S3Option {
	return func(g *S3Getter) { g.endpoint = endpoint }
}

// NewS3Getter creates the S3 getter.
func NewS3Getter(opts ...S3Option) *S3Getter {
	g := &S3Getter{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Matches reports true for s3 sources.
func (g *S3Getter) Matches(loc *Locator) bool {
	return loc.Scheme == SchemeS3
}

// Fetch downloads the object into staging. The locator's authority is
// the bucket and its path the key; region and endpoint options steer
// the request.
func (g *S3Getter) Fetch(ctx context.Context, loc *Locator, st *Staging, opts Options) error {
	bucket, key := loc.Authority, loc.Path
	if bucket == "" || key == "" {
		return geterrors.Newf("s3", geterrors.KindInvalidLocator, "%q does not name a bucket and key", loc.Raw)
	}

	endpoint := loc.Option("endpoint")
	if endpoint == "" {
		endpoint = g.endpoint
	}

	api, err := g.client(ctx, endpoint)
	if err != nil {
		return geterrors.New("s3", geterrors.KindAuthentication, err)
	}

	var optFns []func(*s3.Options)
	if region := loc.Option("region"); region != "" {
		optFns = append(optFns, func(o *s3.Options) { o.Region = region })
	}

	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, optFns...)
	if err != nil {
		return geterrors.New("s3", classifyS3Err(err), err)
	}
	defer out.Body.Close()

	if _, err := st.WriteFrom(out.Body); err != nil {
		return geterrors.New("s3", classifyS3Err(err), err)
	}
	return nil
}

// client returns the injected client or builds one from the lazily
// loaded default config, pointed at endpoint when set.
func (g *S3Getter) client(ctx context.Context, endpoint string) (s3api.Client, error) {
	if g.api != nil {
		return g.api, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg == nil {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		g.cfg = &cfg
	}
	if endpoint == "" {
		return s3.NewFromConfig(*g.cfg), nil
	}
	return s3.NewFromConfig(*g.cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), nil
}

// classifyS3Err maps SDK failures by their API error code.
func classifyS3Err(err error) geterrors.Kind {
	if kind, ok := classifyContext(err); ok {
		return kind
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return geterrors.KindNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return geterrors.KindAuthentication
		case "RequestTimeout", "SlowDown", "ServiceUnavailable", "InternalError", "Throttling":
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
