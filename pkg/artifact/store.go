// Package artifact provides read access to a published test run: the
// dataset snapshot, the report descriptor and the per-record artifact
// directories, stored either on the local filesystem or in S3.
package artifact

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/config"
)

// Store provides read access to the files of a published run. Paths are
// slash-separated and relative to the run root.
type Store interface {
	// Get reads the file at the given path.
	// Returns (nil, nil) when the file does not exist.
	Get(ctx context.Context, filePath string) ([]byte, error)

	// List returns the names of the entries directly under dir. Directory
	// entries carry a trailing slash. Returns (nil, nil) when dir does not
	// exist.
	List(ctx context.Context, dir string) ([]string, error)

	// Location describes the run root for logging.
	Location() string
}

// New creates the Store for the enabled source backend.
func New(cfg *config.SourceConfig) (Store, error) {
	switch {
	case cfg.S3.Enabled:
		return NewS3Store(&cfg.S3), nil
	case cfg.Local.Enabled:
		return NewLocalStore(&cfg.Local), nil
	default:
		return nil, fmt.Errorf("no source backend configured")
	}
}

// IsAllowedPath rejects empty, absolute, unclean, or traversal request paths.
func IsAllowedPath(filePath string) bool {
	if filePath == "" {
		return false
	}

	if strings.Contains(filePath, "..") {
		return false
	}

	if strings.HasPrefix(filePath, "/") {
		return false
	}

	// Ensure the path is clean (no double slashes, trailing slashes, etc.).
	return path.Clean(filePath) == filePath
}
