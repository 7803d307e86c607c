// Package s3api defines the narrow S3 interface the getter consumes, so
// tests can mock the SDK and callers can inject configured clients.
package s3api

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client is the slice of the S3 API the getter uses.
type Client interface {
	// GetObject retrieves an object from S3.
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Ensure the real SDK client satisfies the interface.
var _ Client = (*s3.Client)(nil)
