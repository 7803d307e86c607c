// Package getter downloads single files from heterogeneous sources
// behind one call. A source string is parsed into a locator, routed to
// the getter registered for its scheme, fetched with retries, and
// committed to the destination atomically: bytes land in a staging file
// next to the destination and a rename publishes them only after the
// fetch succeeds, so the destination never holds a partial download.
//
// Built-in getters cover local files, HTTP(S), git repositories, S3,
// Google Cloud Storage, Azure Blob Storage and OCI registries. Sources
// without a scheme run through a detector chain that recognizes GitHub
// and Amazon S3 shorthands and falls back to local paths.
//
// Key features:
//   - One entry point for file, http(s), git, s3, gs, azblob and oci sources
//   - All-or-nothing destinations via staged commits
//   - Exponential backoff retries for transient failures only
//   - Failure kinds callers can branch on (not found, authentication, ...)
//   - Custom getters and priorities through the registry
//
// Example usage:
//
//	client, err := getter.New()
//	if err != nil {
//	    return err
//	}
//
//	// Download a file from a public bucket.
//	res, err := client.Get(ctx, "s3://my-bucket/path/file.txt?region=eu-west-1", "/tmp/file.txt")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Destination, res.BytesWritten)
package getter
