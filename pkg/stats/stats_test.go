package stats

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/dataset/datasettest"
	"github.com/ethpandaops/reportoor/pkg/descriptor"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDataset(t *testing.T, records []datasettest.Record) *dataset.Dataset {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	ds, err := dataset.Load(context.Background(), log,
		datasettest.Snapshot(t, records, datasettest.Components()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = ds.Close() })

	return ds
}

func TestOverall(t *testing.T) {
	ds := loadDataset(t, datasettest.Records())
	desc := &descriptor.Descriptor{CPUCount: 4, StartTime: 1700000000, Notes: "nightly"}

	s, err := Overall(context.Background(), ds, desc)
	require.NoError(t, err)

	assert.Equal(t, int64(6), s.Total)
	assert.Equal(t, int64(2), s.Count(dataset.StatusOK))
	assert.Equal(t, int64(1), s.Count(dataset.StatusOOM))
	assert.InDelta(t, 77.25, s.TotalElapsed, 1e-9)
	assert.InDelta(t, 19.3125, s.WallTime(), 1e-9)

	labels := make([]string, 0, len(s.Slices))
	for _, sl := range s.Slices {
		labels = append(labels, sl.Label)
	}

	assert.Equal(t, []string{"Successes", "Failures", "Crashes", "Timed out", "OOMs"}, labels)

	want := "Statistics:\n" +
		"Total run: 6\n" +
		"Successes: 2 (33.33%)\n" +
		"Failures: 1 (16.66%)\n" +
		"Crashes: 1 (16.66%)\n" +
		"Timed out: 1 (16.66%)\n" +
		"OOMs: 1 (16.66%)\n" +
		"\nStart time: 2023-11-14T22:13:20Z\n" +
		"Total runtime: 19.312 (CPU count: 4)" +
		"\nnightly\n"
	assert.Equal(t, want, s.Text())
}

func TestOverall_CPUCountBelowOne(t *testing.T) {
	ds := loadDataset(t, datasettest.Records())

	s, err := Overall(context.Background(), ds, &descriptor.Descriptor{CPUCount: 0})
	require.NoError(t, err)

	assert.Equal(t, 1, s.CPUCount)
	assert.InDelta(t, 77.25, s.WallTime(), 1e-9)
	assert.NotContains(t, s.Text(), "\n\n\n")
}

func TestOverall_EmptyRun(t *testing.T) {
	ds := loadDataset(t, nil)

	s, err := Overall(context.Background(), ds, &descriptor.Descriptor{CPUCount: 2})
	require.NoError(t, err)

	assert.Zero(t, s.Total)
	assert.Zero(t, s.TotalElapsed)
	assert.Contains(t, s.Text(), "Successes: 0 (0%)\n")

	err = s.Chart().RenderSVG(&bytes.Buffer{}, 0, 0)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSummary_Chart(t *testing.T) {
	ds := loadDataset(t, datasettest.Records())

	s, err := Overall(context.Background(), ds, &descriptor.Descriptor{CPUCount: 1})
	require.NoError(t, err)

	c := s.Chart()
	assert.Equal(t, []string{"Successes", "Failures", "Crashes", "Timed out", "OOMs"}, c.Labels)
	assert.Equal(t, []float64{2, 1, 1, 1, 1}, c.Series)
	assert.Equal(t, []string{"#00e396", "#e6c000", "#f93636", "#fc923c", "#3c63fc"}, c.Colors)
	assert.False(t, c.Legend)

	var buf bytes.Buffer
	require.NoError(t, c.RenderSVG(&buf, 300, 300))
	assert.Contains(t, buf.String(), "<svg")
}

func TestCategories(t *testing.T) {
	ds := loadDataset(t, datasettest.Records())

	b, err := Categories(context.Background(), ds, "CRASHED")
	require.NoError(t, err)

	assert.Equal(t, int64(14), b.Total)
	assert.Equal(t, []CategoryStat{
		{Category: "CRASHED", Name: "decompiler", Count: 7},
		{Category: "CRASHED", Name: "lifter", Count: 3},
		{Category: "CRASHED", Name: "loader", Count: 3},
		{Category: "CRASHED", Name: "abi", Count: 1},
	}, b.Components)

	assert.Equal(t, "decompiler: 7 (50%)\n"+
		"lifter: 3 (21.42%)\n"+
		"loader: 3 (21.42%)\n"+
		"abi: 1 (7.14%)\n", b.Text())

	c := b.Chart()
	assert.Equal(t, []string{"decompiler", "lifter", "loader", "abi"}, c.Labels)
	assert.Empty(t, c.Colors)
	assert.False(t, c.Legend)
}

func TestCategories_Unknown(t *testing.T) {
	ds := loadDataset(t, datasettest.Records())

	b, err := Categories(context.Background(), ds, "OOM")
	require.NoError(t, err)

	assert.Empty(t, b.Components)
	assert.Empty(t, b.Text())
	assert.ErrorIs(t, b.Chart().RenderSVG(&bytes.Buffer{}, 0, 0), ErrNoData)
}
