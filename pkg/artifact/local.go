package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/config"
)

// Compile-time interface check.
var _ Store = (*localStore)(nil)

type localStore struct {
	root string
}

// NewLocalStore creates a Store backed by a local run directory.
func NewLocalStore(cfg *config.LocalSourceConfig) Store {
	return &localStore{root: filepath.Clean(cfg.Path)}
}

// Location returns the run directory.
func (s *localStore) Location() string {
	return s.root
}

// Get reads {root}/{filePath}.
// Returns (nil, nil) when the file does not exist.
func (s *localStore) Get(_ context.Context, filePath string) ([]byte, error) {
	full, err := s.resolve(filePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full) //nolint:gosec // resolved under root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading file %s: %w", full, err)
	}

	return data, nil
}

// List returns the entries of {root}/{dir}, directories suffixed with "/".
func (s *localStore) List(_ context.Context, dir string) ([]string, error) {
	full := s.root

	if dir = strings.TrimSuffix(dir, "/"); dir != "" {
		var err error

		full, err = s.resolve(dir)
		if err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading directory %s: %w", full, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name()+"/")
		} else {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

func (s *localStore) resolve(filePath string) (string, error) {
	if !IsAllowedPath(filePath) {
		return "", fmt.Errorf("path %q is not allowed", filePath)
	}

	full := filepath.Join(s.root, filepath.FromSlash(filePath))

	// The resolved path must stay under root.
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the run directory", filePath)
	}

	return full, nil
}
