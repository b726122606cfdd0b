// Package upload publishes a local run directory to the S3 source a report
// is served from.
package upload

import "context"

// Uploader publishes a local run directory to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload publishes every file under localDir, keyed by its path relative
	// to localDir under the configured prefix. Returns the number of files
	// uploaded.
	Upload(ctx context.Context, localDir string) (int, error)
}
