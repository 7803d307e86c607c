// Package gcsapi defines the narrow Cloud Storage interface the getter
// consumes and adapts the real client to it, isolating the SDK.
package gcsapi

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// Client is the slice of the Cloud Storage API the getter uses.
type Client interface {
	// NewReader opens the named object for reading.
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// GoogleClient adapts *storage.Client to Client.
type GoogleClient struct {
	C *storage.Client
}

// NewReader opens bucket/object through the wrapped client.
func (g *GoogleClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return g.C.Bucket(bucket).Object(object).NewReader(ctx)
}

var _ Client = (*GoogleClient)(nil)
