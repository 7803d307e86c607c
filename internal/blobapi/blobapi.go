// Package blobapi defines the narrow Azure Blob interface the getter
// consumes, so tests can mock the SDK and callers can inject configured
// clients.
package blobapi

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Client is the slice of the Azure Blob API the getter uses.
type Client interface {
	// DownloadStream starts reading the named blob.
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

// Ensure the real SDK client satisfies the interface.
var _ Client = (*azblob.Client)(nil)
