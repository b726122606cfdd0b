// Package report ties a published run together: its dataset, descriptor,
// columns and artifact store, opened once and shared read-only.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/descriptor"
	"github.com/ethpandaops/reportoor/pkg/detail"
	"github.com/ethpandaops/reportoor/pkg/grid"
	"github.com/ethpandaops/reportoor/pkg/handoff"
	"github.com/ethpandaops/reportoor/pkg/query"
	"github.com/ethpandaops/reportoor/pkg/reproducer"
	"github.com/ethpandaops/reportoor/pkg/schema"
	"github.com/ethpandaops/reportoor/pkg/stats"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownPage is returned for a page name that is not in Pages.
var ErrUnknownPage = errors.New("unknown page")

// Report is an opened run.
type Report struct {
	log        logrus.FieldLogger
	store      artifact.Store
	ds         *dataset.Dataset
	desc       *descriptor.Descriptor
	columns    []schema.Column
	order      []schema.SortKey
	reproducer *reproducer.Builder
}

// Open fetches the snapshot and the descriptor from store concurrently and
// builds the report. A snapshot that cannot be loaded fails with a
// *dataset.LoadError.
func Open(
	ctx context.Context,
	log logrus.FieldLogger,
	store artifact.Store,
	cfg *config.SourceConfig,
) (*Report, error) {
	log = log.WithField("component", "report")

	var (
		snapshot []byte
		descData []byte
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := store.Get(gctx, cfg.SnapshotFile)
		if err != nil {
			return &dataset.LoadError{Err: fmt.Errorf("fetching %s: %w", cfg.SnapshotFile, err)}
		}

		if data == nil {
			return &dataset.LoadError{Err: fmt.Errorf("%s not found", cfg.SnapshotFile)}
		}

		snapshot = data

		return nil
	})

	g.Go(func() error {
		data, err := store.Get(gctx, cfg.DescriptorFile)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", cfg.DescriptorFile, err)
		}

		if data == nil {
			return fmt.Errorf("%s not found", cfg.DescriptorFile)
		}

		descData = data

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	desc, err := descriptor.Parse(descData)
	if err != nil {
		return nil, err
	}

	ds, err := dataset.Load(ctx, log, snapshot)
	if err != nil {
		return nil, err
	}

	columns := schema.Build(desc)

	r := &Report{
		log:        log,
		store:      store,
		ds:         ds,
		desc:       desc,
		columns:    columns,
		order:      schema.Order(desc, columns),
		reproducer: reproducer.New(log, store),
	}

	log.WithField("location", store.Location()).
		WithField("columns", len(columns)).
		Info("Report opened")

	return r, nil
}

// Close releases the dataset.
func (r *Report) Close() error {
	return r.ds.Close()
}

// Store returns the artifact store of the run.
func (r *Report) Store() artifact.Store { return r.store }

// Dataset returns the run's dataset.
func (r *Report) Dataset() *dataset.Dataset { return r.ds }

// Descriptor returns the run's descriptor.
func (r *Report) Descriptor() *descriptor.Descriptor { return r.desc }

// Columns returns the grid columns.
func (r *Report) Columns() []schema.Column { return r.columns }

// Order returns the default grid order.
func (r *Report) Order() []schema.SortKey { return r.order }

// NewGrid returns an empty grid with the report's columns and order.
func (r *Report) NewGrid() *grid.Table {
	return grid.New(r.columns, r.order)
}

// NewMachine returns a search state machine over a page.
func (r *Report) NewMachine(page Page, g query.Grid, loc query.Location) *query.Machine {
	return query.NewMachine(r.log, r.ds, g, loc, page.Filter)
}

// SearchRequest describes a search to run on a page. Token is replayed
// first; a non-nil Query is then entered in Mode and, for RawQuery,
// submitted.
type SearchRequest struct {
	Page  string
	Token string
	Query *string
	Mode  query.Mode
}

// SearchResult is a drawn grid together with the token of its state.
type SearchResult struct {
	Page  Page
	Grid  *grid.Table
	Token string
	State query.SearchState
}

// Search runs a search on a fresh grid.
func (r *Report) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	page, ok := FindPage(req.Page)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, req.Page)
	}

	tbl := r.NewGrid()
	loc := query.NewMemoryLocation(req.Token)
	m := r.NewMachine(page, tbl, loc)

	if err := m.Restore(ctx); err != nil {
		return nil, err
	}

	if req.Query != nil {
		if err := m.SetMode(ctx, req.Mode); err != nil {
			return nil, err
		}

		if err := m.Input(ctx, *req.Query); err != nil {
			return nil, err
		}

		if err := m.Submit(ctx); err != nil {
			return nil, err
		}
	}

	return &SearchResult{
		Page:  page,
		Grid:  tbl,
		Token: loc.Token(),
		State: m.State(),
	}, nil
}

// Stats computes the overall statistics.
func (r *Report) Stats(ctx context.Context) (*stats.Summary, error) {
	return stats.Overall(ctx, r.ds, r.desc)
}

// Categories computes the component breakdown of a category.
func (r *Report) Categories(ctx context.Context, category string) (*stats.Breakdown, error) {
	return stats.Categories(ctx, r.ds, category)
}

// Detail composes the detail view of a record.
func (r *Report) Detail(ctx context.Context, name string) (*detail.View, error) {
	return detail.Compose(ctx, r.ds, r.desc, name)
}

// Reproducer builds the reproducer archive of a record, nil when it is
// unavailable.
func (r *Report) Reproducer(ctx context.Context, name string) ([]byte, error) {
	return r.reproducer.Build(ctx, name, r.desc)
}

// Trace fetches the trace of a record as a viewer payload, nil when the
// record has no trace.
func (r *Report) Trace(ctx context.Context, name string) (*handoff.Payload, error) {
	p := artifact.TracePath(name)

	buf, err := r.store.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p, err)
	}

	if buf == nil {
		return nil, nil
	}

	payload := handoff.NewPayload(name, p, buf)

	return &payload, nil
}

// Handoff hands the trace of a record to a viewer window opened by opener.
func (r *Report) Handoff(
	ctx context.Context,
	name string,
	opener handoff.Opener,
	opts handoff.Options,
) handoff.State {
	return handoff.New(r.log, opener, opts).Run(ctx, name, r.store.Get)
}
