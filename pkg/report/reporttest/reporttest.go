// Package reporttest writes published runs to disk for tests.
package reporttest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/dataset/datasettest"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Descriptor is the meta.yml of the test run.
const Descriptor = `extra_columns:
  - name: size
    label: Size
    renderer: filesize
    align: right
  - name: arch
    label: Arch
downloads:
  - name: stderr.log
    label: Stderr
ordering:
  - name: elapsed_time
    dir: desc
notes: test run
reproducer_prelude: cd "$SCRIPT_DIR"
cpu_count: 4
start_time: 1700000000
`

// Harness is the test-harness.json of every record with an input.
const Harness = `{"command": ["./tool", "--input", "%INPUT%"]}`

// Trace is the content of every trace.json.gz.
var Trace = []byte{0x1f, 0x8b, 0x08, 0x00}

// WriteRun writes the datasettest records as a published run and returns
// its directory. Only bin/crash, bin/false and bin/echo have artifacts.
func WriteRun(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	write := func(rel string, data []byte) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}

	write(config.DefaultSnapshotFile, datasettest.Snapshot(t, datasettest.Records(), datasettest.Components()))
	write(config.DefaultDescriptorFile, []byte(Descriptor))

	for _, name := range []string{"bin/crash", "bin/false", "bin/echo"} {
		write(artifact.InputPath(name), []byte("input of "+name))
		write(artifact.HarnessPath(name), []byte(Harness))
		write(artifact.LogPath(name), []byte("log of "+name+"\n"))
	}

	write(artifact.TracePath("bin/crash"), Trace)
	write(artifact.TracePath("bin/echo"), Trace)

	return dir
}

// SourceConfig returns the source configuration reading dir.
func SourceConfig(dir string) *config.SourceConfig {
	return &config.SourceConfig{
		SnapshotFile:   config.DefaultSnapshotFile,
		DescriptorFile: config.DefaultDescriptorFile,
		Local:          config.LocalSourceConfig{Enabled: true, Path: dir},
	}
}

// Open writes a run and opens it. The report is closed with the test.
func Open(t *testing.T) *report.Report {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := SourceConfig(WriteRun(t))

	store, err := artifact.New(cfg)
	require.NoError(t, err)

	r, err := report.Open(context.Background(), log, store, cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = r.Close() })

	return r
}
