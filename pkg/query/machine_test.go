package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDataset struct {
	queries []string
	err     error
	rows    map[string][]dataset.Row
}

func (f *fakeDataset) Query(_ context.Context, q string, _ ...any) ([]dataset.Row, error) {
	f.queries = append(f.queries, q)

	if f.err != nil {
		return nil, f.err
	}

	if strings.Contains(q, "BROKEN") {
		return nil, &dataset.QuerySyntaxError{Query: q, Err: errors.New("near BROKEN")}
	}

	return f.rows[q], nil
}

type fakeGrid struct {
	loaded [][]dataset.Row
	search string
	draws  int
}

func (g *fakeGrid) Load(rows []dataset.Row) { g.loaded = append(g.loaded, rows) }
func (g *fakeGrid) Search(text string)      { g.search = text }
func (g *fakeGrid) ClearSearch()            { g.search = "" }
func (g *fakeGrid) Draw()                   { g.draws++ }

func oneRow(name string) []dataset.Row {
	return []dataset.Row{{Columns: []string{"name"}, Values: map[string]any{"name": name}}}
}

func newMachine(token, filter string) (*Machine, *fakeDataset, *fakeGrid, *MemoryLocation) {
	ds := &fakeDataset{rows: map[string][]dataset.Row{}}
	g := &fakeGrid{}
	loc := NewMemoryLocation(token)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return NewMachine(log, ds, g, loc, filter), ds, g, loc
}

func TestBaseQuery(t *testing.T) {
	assert.Equal(t, "SELECT * FROM main WHERE 1=1", BaseQuery(""))
	assert.Equal(t, "SELECT * FROM main WHERE 1=1 AND status = 'FAILED'", BaseQuery("status = 'FAILED'"))
}

func TestRestore_WithoutToken(t *testing.T) {
	m, ds, g, loc := newMachine("", "")

	require.NoError(t, m.Restore(context.Background()))

	assert.Equal(t, []string{BasePredicate}, ds.queries)
	assert.Len(t, g.loaded, 1)
	assert.Equal(t, 1, g.draws)
	assert.Empty(t, loc.Token())
	assert.Equal(t, SearchState{}, m.State())
}

func TestRestore_ReplaysTextFilter(t *testing.T) {
	token := SearchState{Query: "crash", Mode: TextFilter}.Encode()
	m, ds, g, _ := newMachine(token, "")

	require.NoError(t, m.Restore(context.Background()))

	assert.Equal(t, []string{BasePredicate}, ds.queries)
	assert.Equal(t, "crash", g.search)
	assert.Equal(t, SearchState{Query: "crash", Mode: TextFilter}, m.State())
}

func TestRestore_ReplaysRawQuery(t *testing.T) {
	token := SearchState{Query: "exit_code = 1", Mode: RawQuery}.Encode()
	m, ds, g, _ := newMachine(token, "status = 'FAILED'")

	want := "SELECT * FROM main WHERE 1=1 AND status = 'FAILED' AND (exit_code = 1)"
	ds.rows[want] = oneRow("bin/false")

	require.NoError(t, m.Restore(context.Background()))

	require.Len(t, ds.queries, 2)
	assert.Equal(t, want, ds.queries[1])
	require.Len(t, g.loaded, 2)
	assert.Equal(t, oneRow("bin/false"), g.loaded[1])
	assert.Equal(t, 2, g.draws)
}

func TestRestore_InvalidToken(t *testing.T) {
	m, _, g, _ := newMachine("%%%", "")

	err := m.Restore(context.Background())
	require.ErrorIs(t, err, ErrInvalidToken)

	// The unfiltered rows stay visible.
	assert.Len(t, g.loaded, 1)
	assert.Equal(t, 1, g.draws)
}

func TestInput_TextFilter(t *testing.T) {
	m, ds, g, loc := newMachine("", "")
	require.NoError(t, m.Restore(context.Background()))

	require.NoError(t, m.Input(context.Background(), "bin/"))

	assert.Equal(t, "bin/", g.search)
	assert.Equal(t, 2, g.draws)
	assert.Len(t, ds.queries, 1, "text filtering never queries the dataset")
	assert.Equal(t, SearchState{Query: "bin/", Mode: TextFilter}.Encode(), loc.Token())
}

func TestInput_RawQueryOnlyRemembers(t *testing.T) {
	m, ds, g, loc := newMachine("", "")
	require.NoError(t, m.Restore(context.Background()))
	require.NoError(t, m.SetMode(context.Background(), RawQuery))

	tokenBefore := loc.Token()
	drawsBefore := g.draws

	require.NoError(t, m.Input(context.Background(), "exit_code = 1"))

	assert.Len(t, ds.queries, 1)
	assert.Equal(t, drawsBefore, g.draws)
	assert.Equal(t, tokenBefore, loc.Token())
	assert.Equal(t, "exit_code = 1", m.State().Query)
}

func TestSubmit(t *testing.T) {
	m, ds, g, loc := newMachine("", "")
	ctx := context.Background()

	require.NoError(t, m.Restore(ctx))
	require.NoError(t, m.SetMode(ctx, RawQuery))
	require.NoError(t, m.Input(ctx, "status = 'OK'"))

	q := BasePredicate + " AND (status = 'OK')"
	ds.rows[q] = oneRow("bin/true")

	require.NoError(t, m.Submit(ctx))

	assert.Equal(t, q, ds.queries[len(ds.queries)-1])
	assert.Equal(t, oneRow("bin/true"), g.loaded[len(g.loaded)-1])
	assert.Equal(t, SearchState{Query: "status = 'OK'", Mode: RawQuery}.Encode(), loc.Token())
}

func TestSubmit_SyntaxErrorKeepsRows(t *testing.T) {
	m, _, g, loc := newMachine("", "")
	ctx := context.Background()

	require.NoError(t, m.Restore(ctx))
	require.NoError(t, m.SetMode(ctx, RawQuery))
	require.NoError(t, m.Input(ctx, "BROKEN ("))

	loads, draws := len(g.loaded), g.draws

	require.NoError(t, m.Submit(ctx))

	assert.Len(t, g.loaded, loads)
	assert.Equal(t, draws, g.draws)
	assert.Equal(t, SearchState{Query: "BROKEN (", Mode: RawQuery}.Encode(), loc.Token())
}

func TestSubmit_OtherErrorsPropagate(t *testing.T) {
	m, ds, _, _ := newMachine("", "")
	ctx := context.Background()

	require.NoError(t, m.Restore(ctx))
	require.NoError(t, m.SetMode(ctx, RawQuery))

	ds.err = errors.New("disk on fire")

	err := m.Submit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestSubmit_IgnoredInTextFilter(t *testing.T) {
	m, ds, _, _ := newMachine("", "")
	require.NoError(t, m.Restore(context.Background()))

	require.NoError(t, m.Submit(context.Background()))
	assert.Len(t, ds.queries, 1)
}

func TestSetMode(t *testing.T) {
	m, ds, g, loc := newMachine("", "")
	ctx := context.Background()

	require.NoError(t, m.Restore(ctx))
	require.NoError(t, m.Input(ctx, "crash"))
	require.Equal(t, "crash", g.search)

	// Into RawQuery: the substring filter is dropped, no query runs.
	require.NoError(t, m.SetMode(ctx, RawQuery))
	assert.Empty(t, g.search)
	assert.Len(t, ds.queries, 1)
	assert.Equal(t, SearchState{Query: "crash", Mode: RawQuery}.Encode(), loc.Token())
	assert.Equal(t, RawQuery, m.State().Mode)

	// Out of RawQuery: the unfiltered rows are fetched again.
	require.NoError(t, m.SetMode(ctx, TextFilter))
	assert.Equal(t, []string{BasePredicate, BasePredicate}, ds.queries)
	assert.Len(t, g.loaded, 2)
	assert.Equal(t, SearchState{Query: "crash", Mode: TextFilter}.Encode(), loc.Token())
	assert.Equal(t, TextFilter, m.State().Mode)
	assert.Equal(t, "crash", g.search)

	// Setting the current mode again changes nothing.
	draws := g.draws
	require.NoError(t, m.SetMode(ctx, TextFilter))
	assert.Equal(t, draws, g.draws)
}

func TestSetMode_RawQueryRunsOnSubmit(t *testing.T) {
	m, ds, g, _ := newMachine("", "")
	ctx := context.Background()

	require.NoError(t, m.Restore(ctx))
	require.NoError(t, m.SetMode(ctx, RawQuery))
	require.Equal(t, RawQuery, m.State().Mode)

	// The text is not used as a substring filter in RawQuery mode.
	require.NoError(t, m.Input(ctx, "status = 'OK'"))
	assert.Empty(t, g.search)

	q := BasePredicate + " AND (status = 'OK')"
	ds.rows[q] = oneRow("bin/true")

	require.NoError(t, m.Submit(ctx))
	assert.Equal(t, []string{BasePredicate, q}, ds.queries)
	assert.Equal(t, oneRow("bin/true"), g.loaded[len(g.loaded)-1])
}
