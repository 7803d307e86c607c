// Package testutil provides mocks and fakes for getter tests. It is
// internal and should only be used for testing within this module.
package testutil

import (
	"bytes"
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/gcsapi"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/orasapi"
	"github.com/input-output-hk/catalyst-forge-libs/getter/internal/s3api"
)

// MockS3Client mocks the S3 API slice through a function field.
type MockS3Client struct {
	GetObjectFunc func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ s3api.Client = (*MockS3Client)(nil)

// GetObject mocks the S3 GetObject operation.
func (m *MockS3Client) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

// MockGCSClient mocks the Cloud Storage API slice through a function
// field.
type MockGCSClient struct {
	NewReaderFunc func(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

var _ gcsapi.Client = (*MockGCSClient)(nil)

// NewReader mocks opening an object for reading.
func (m *MockGCSClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	if m.NewReaderFunc != nil {
		return m.NewReaderFunc(ctx, bucket, object)
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

// MockBlobClient mocks the Azure Blob API slice through a function
// field.
type MockBlobClient struct {
	DownloadStreamFunc func(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

var _ blobapi.Client = (*MockBlobClient)(nil)

// DownloadStream mocks starting a blob download.
func (m *MockBlobClient) DownloadStream(
	ctx context.Context,
	containerName, blobName string,
	o *azblob.DownloadStreamOptions,
) (azblob.DownloadStreamResponse, error) {
	if m.DownloadStreamFunc != nil {
		return m.DownloadStreamFunc(ctx, containerName, blobName, o)
	}
	return BlobResponse(nil), nil
}

// BlobResponse builds a download response carrying body. The response
// type embeds a generated struct, so it is assembled field by field.
func BlobResponse(body []byte) azblob.DownloadStreamResponse {
	var resp azblob.DownloadStreamResponse
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp
}

// MockOCIClient mocks the registry API slice through a function field.
type MockOCIClient struct {
	FetchBlobFunc func(ctx context.Context, reference string) (*orasapi.Blob, error)
}

var _ orasapi.Client = (*MockOCIClient)(nil)

// FetchBlob mocks pulling an artifact blob.
func (m *MockOCIClient) FetchBlob(ctx context.Context, reference string) (*orasapi.Blob, error) {
	if m.FetchBlobFunc != nil {
		return m.FetchBlobFunc(ctx, reference)
	}
	return &orasapi.Blob{Data: io.NopCloser(bytes.NewReader(nil))}, nil
}
