// Package orasapi wraps ORAS registry access behind the narrow
// interface the getter consumes, isolating the dependency.
package orasapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
)

// dockerManifestMediaType is the Docker v2 schema 2 manifest media type,
// still served by older registries.
const dockerManifestMediaType = "application/vnd.docker.distribution.manifest.v2+json"

// Blob is fetched artifact content.
type Blob struct {
	MediaType string
	Size      int64
	Data      io.ReadCloser
}

// Client fetches artifact content from an OCI registry.
type Client interface {
	// FetchBlob resolves reference and returns its content blob. When
	// the reference names an image manifest the blob is its first
	// layer.
	FetchBlob(ctx context.Context, reference string) (*Blob, error)
}

// Remote is the ORAS-backed Client.
type Remote struct {
	// Credential overrides the registry credential chain when set.
	Credential auth.CredentialFunc

	// PlainHTTP dials the registry without TLS.
	PlainHTTP bool
}

var _ Client = (*Remote)(nil)

// FetchBlob resolves reference against the remote registry.
func (r *Remote) FetchBlob(ctx context.Context, reference string) (*Blob, error) {
	repoPath, refPart, _ := SplitReference(reference)
	if repoPath == "" || refPart == "" {
		return nil, fmt.Errorf("reference %q must name a repository and a tag or digest", reference)
	}

	repo, err := remote.NewRepository(repoPath)
	if err != nil {
		return nil, err
	}
	repo.PlainHTTP = r.PlainHTTP

	client := &auth.Client{Cache: auth.NewCache()}
	if r.Credential != nil {
		client.Credential = r.Credential
	}
	repo.Client = client

	desc, reader, err := oras.Fetch(ctx, repo, refPart, oras.DefaultFetchOptions)
	if err != nil {
		return nil, err
	}

	// Anything that is not a manifest is the artifact content itself.
	if desc.MediaType != ocispec.MediaTypeImageManifest && desc.MediaType != dockerManifestMediaType {
		return &Blob{MediaType: desc.MediaType, Size: desc.Size, Data: reader}, nil
	}

	manifestBytes, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var man ocispec.Manifest
	if err := json.Unmarshal(manifestBytes, &man); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(man.Layers) == 0 {
		return nil, fmt.Errorf("manifest %s has no layers", reference)
	}

	layer := man.Layers[0]
	data, err := repo.Blobs().Fetch(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("fetch layer: %w", err)
	}
	return &Blob{MediaType: layer.MediaType, Size: layer.Size, Data: data}, nil
}

// SplitReference splits "host/repo:tag" or "host/repo@digest" into the
// repository path and the reference part. The separator is searched only
// after the last slash so registry ports survive.
func SplitReference(full string) (repoPath, refPart string, isDigest bool) {
	lastSlash := strings.LastIndex(full, "/")
	if lastSlash == -1 {
		return full, "", false
	}
	head, tail := full[:lastSlash], full[lastSlash+1:]

	if at := strings.LastIndex(tail, "@"); at != -1 {
		return head + "/" + tail[:at], tail[at+1:], true
	}
	if colon := strings.LastIndex(tail, ":"); colon != -1 {
		return head + "/" + tail[:colon], tail[colon+1:], false
	}
	return full, "", false
}
