package query_test

import (
	"context"
	"testing"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/dataset/datasettest"
	"github.com/ethpandaops/reportoor/pkg/grid"
	"github.com/ethpandaops/reportoor/pkg/query"
	"github.com/ethpandaops/reportoor/pkg/schema"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowNames(rows []dataset.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, dataset.String(r.Get("name")))
	}

	return out
}

func TestMachine_AgainstSnapshot(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	ds, err := dataset.Load(ctx, log, datasettest.Snapshot(t, datasettest.Records(), nil))
	require.NoError(t, err)

	t.Cleanup(func() { _ = ds.Close() })

	cols := schema.Build(nil)
	tbl := grid.New(cols, []schema.SortKey{{Column: schema.Find(cols, "elapsed_time")}})
	loc := query.NewMemoryLocation(query.SearchState{Query: "elapsed_time > 2", Mode: query.RawQuery}.Encode())

	m := query.NewMachine(log, ds, tbl, loc, "status <> 'OK'")
	require.NoError(t, m.Restore(ctx))

	assert.Equal(t, []string{"bin/crash", "bin/hog", "bin/loop"}, rowNames(tbl.Rows()))

	// A rejected query keeps the rows on display.
	require.NoError(t, m.Input(ctx, "elapsed_time >>> 2"))
	require.NoError(t, m.Submit(ctx))
	assert.Equal(t, []string{"bin/crash", "bin/hog", "bin/loop"}, rowNames(tbl.Rows()))

	require.NoError(t, m.SetMode(ctx, query.TextFilter))
	require.NoError(t, m.Input(ctx, "bin/"))
	assert.Equal(t, []string{"bin/false", "bin/crash", "bin/hog", "bin/loop"}, rowNames(tbl.Rows()))
	assert.Equal(t, 4, tbl.Total())

	decoded, err := query.Decode(loc.Token())
	require.NoError(t, err)
	assert.Equal(t, query.SearchState{Query: "bin/", Mode: query.TextFilter}, decoded)
}
