package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwner(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Owner
		wantErr bool
	}{
		{name: "empty", input: ""},
		{name: "valid", input: "1000:1001", want: &Owner{UID: 1000, GID: 1001}},
		{name: "missing gid", input: "1000", wantErr: true},
		{name: "too many parts", input: "1:2:3", wantErr: true},
		{name: "non numeric", input: "root:root", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOwner(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.yml")

	require.NoError(t, ReplaceFile(path, []byte("a: 1\n"), 0o600, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.Chmod(path, 0o640))
	require.NoError(t, ReplaceFile(path, []byte("a: 2\n"), 0o600, nil))

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestReplaceFile_MissingDir(t *testing.T) {
	err := ReplaceFile(filepath.Join(t.TempDir(), "nope", "x"), nil, 0o644, nil)
	require.Error(t, err)
}
