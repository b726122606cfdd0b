package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocalStore(t *testing.T) (Store, string) {
	t.Helper()

	root := t.TempDir()
	recordDir := filepath.Join(root, "bin", "ls")
	require.NoError(t, os.MkdirAll(recordDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(recordDir, InputFile), []byte("ELF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(recordDir, LogFile), []byte("ok\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(recordDir, "extra"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "meta.yml"), []byte("cpu_count: 4\n"), 0o644))

	return NewLocalStore(&config.LocalSourceConfig{Enabled: true, Path: root}), root
}

func TestIsAllowedPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{name: "valid simple path", path: "bin/ls/input", expected: true},
		{name: "valid top level file", path: "main.db", expected: true},
		{name: "empty path", path: "", expected: false},
		{name: "path traversal", path: "bin/../../etc/passwd", expected: false},
		{name: "dot dot only", path: "..", expected: false},
		{name: "absolute path", path: "/etc/passwd", expected: false},
		{name: "trailing slash", path: "bin/ls/", expected: false},
		{name: "double slash", path: "bin//ls", expected: false},
		{name: "dot segment", path: "bin/./ls", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsAllowedPath(tt.path))
		})
	}
}

func TestLocalStore_Get(t *testing.T) {
	store, root := setupLocalStore(t)
	ctx := context.Background()

	t.Run("reads existing file", func(t *testing.T) {
		data, err := store.Get(ctx, InputPath("bin/ls"))
		require.NoError(t, err)
		assert.Equal(t, []byte("ELF"), data)
	})

	t.Run("missing file returns nil", func(t *testing.T) {
		data, err := store.Get(ctx, TracePath("bin/ls"))
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		_, err := store.Get(ctx, "../outside")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not allowed")
	})

	assert.Equal(t, root, store.Location())
}

func TestLocalStore_List(t *testing.T) {
	store, _ := setupLocalStore(t)
	ctx := context.Background()

	names, err := store.List(ctx, DirPath("bin/ls"))
	require.NoError(t, err)
	assert.Equal(t, []string{"extra/", "input", "output.log"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"bin/", "meta.yml"}, names)

	names, err = store.List(ctx, "nope/")
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestS3Store_KeyAndLocation(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		path     string
		key      string
		location string
	}{
		{
			name:     "no prefix",
			path:     "bin/ls/input",
			key:      "bin/ls/input",
			location: "s3://reports",
		},
		{
			name:     "prefix",
			prefix:   "runs/2024-01-01",
			path:     "main.db",
			key:      "runs/2024-01-01/main.db",
			location: "s3://reports/runs/2024-01-01",
		},
		{
			name:     "slashes trimmed",
			prefix:   "/runs/",
			path:     "meta.yml",
			key:      "runs/meta.yml",
			location: "s3://reports/runs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewS3Store(&config.S3SourceConfig{
				Enabled: true,
				Bucket:  "reports",
				Prefix:  tt.prefix,
			}).(*s3Store)

			assert.Equal(t, tt.key, store.key(tt.path))
			assert.Equal(t, tt.location, store.Location())
		})
	}
}

func TestNew(t *testing.T) {
	_, err := New(&config.SourceConfig{})
	require.Error(t, err)

	store, err := New(&config.SourceConfig{
		Local: config.LocalSourceConfig{Enabled: true, Path: t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &localStore{}, store)

	store, err = New(&config.SourceConfig{
		S3: config.S3SourceConfig{Enabled: true, Bucket: "b"},
	})
	require.NoError(t, err)
	assert.IsType(t, &s3Store{}, store)
}

func TestLayout(t *testing.T) {
	assert.Equal(t, "bin/ls/input", InputPath("bin/ls"))
	assert.Equal(t, "bin/ls/output.log", LogPath("bin/ls"))
	assert.Equal(t, "bin/ls/test-harness.json", HarnessPath("bin/ls"))
	assert.Equal(t, "bin/ls/trace.json.gz", TracePath("bin/ls"))
	assert.Equal(t, "bin/ls/", DirPath("bin/ls"))
	assert.Equal(t, "trace.json.gz", BaseName(TracePath("bin/ls")))
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantPrefix string
	}{
		{name: "json file", path: "bin/ls/test-harness.json", wantPrefix: "application/json"},
		{name: "no extension", path: "bin/ls/input", wantPrefix: "application/octet-stream"},
		{name: "log file", path: "bin/ls/output.log", wantPrefix: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, ContentType(tt.path), tt.wantPrefix)
		})
	}
}

func TestS3Store_PresignURL(t *testing.T) {
	store := NewS3Store(&config.S3SourceConfig{
		Enabled:         true,
		Bucket:          "reports",
		Prefix:          "runs/1",
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		PresignExpiry:   "10m",
	})

	p, ok := store.(Presigner)
	require.True(t, ok)

	url, err := p.PresignURL(context.Background(), "bin/ls/input")
	require.NoError(t, err)
	assert.Contains(t, url, "runs/1/bin/ls/input")
	assert.Contains(t, url, "X-Amz-Expires=600")

	again, err := p.PresignURL(context.Background(), "bin/ls/input")
	require.NoError(t, err)
	assert.Equal(t, url, again, "cached")

	_, err = p.PresignURL(context.Background(), "../etc/passwd")
	require.Error(t, err)
}

func TestLocalStore_IsNotPresigner(t *testing.T) {
	store, _ := setupLocalStore(t)

	_, ok := store.(Presigner)
	assert.False(t, ok)
}
