package query

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/sirupsen/logrus"
)

// BasePredicate selects every record of the main table.
const BasePredicate = "SELECT * FROM main WHERE 1=1"

// Dataset runs queries for the machine.
type Dataset interface {
	Query(ctx context.Context, query string, args ...any) ([]dataset.Row, error)
}

// Grid is the table the machine drives. Changes become visible on Draw.
type Grid interface {
	Load(rows []dataset.Row)
	Search(text string)
	ClearSearch()
	Draw()
}

// Location holds the shareable token of the current search.
type Location interface {
	Token() string
	SetToken(token string)
}

// MemoryLocation is a Location kept in memory.
type MemoryLocation struct {
	mu    sync.Mutex
	token string
}

// NewMemoryLocation returns a location holding the given token.
func NewMemoryLocation(token string) *MemoryLocation {
	return &MemoryLocation{token: token}
}

// Token implements Location.
func (l *MemoryLocation) Token() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.token
}

// SetToken implements Location.
func (l *MemoryLocation) SetToken(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.token = token
}

var _ Location = (*MemoryLocation)(nil)

// BaseQuery returns the query selecting the rows of a page. An empty filter
// selects every row.
func BaseQuery(filter string) string {
	if filter == "" {
		return BasePredicate
	}

	return BasePredicate + " AND " + filter
}

// Machine is the search state machine of one grid.
type Machine struct {
	log  logrus.FieldLogger
	ds   Dataset
	grid Grid
	loc  Location
	base string

	mu    sync.Mutex
	state SearchState
}

// NewMachine creates a machine over a page of the dataset. filter is the
// page's base condition, empty for none.
func NewMachine(
	log logrus.FieldLogger,
	ds Dataset,
	grid Grid,
	loc Location,
	filter string,
) *Machine {
	return &Machine{
		log:  log.WithField("component", "query"),
		ds:   ds,
		grid: grid,
		loc:  loc,
		base: BaseQuery(filter),
	}
}

// State returns the current search state.
func (m *Machine) State() SearchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Restore loads the page's rows into the grid and, when the location holds
// a token, replays the search it encodes. A malformed token leaves the
// unfiltered rows in place and returns ErrInvalidToken.
func (m *Machine) Restore(ctx context.Context) error {
	if err := m.reload(ctx); err != nil {
		return err
	}

	m.grid.Draw()

	token := m.loc.Token()
	if token == "" {
		return nil
	}

	state, err := Decode(token)
	if err != nil {
		return err
	}

	m.commit(state)

	return m.search(ctx, state)
}

// SetMode switches the search mode. Entering RawQuery clears the grid's
// substring filter. Leaving it reloads the page's unfiltered rows and
// reapplies the search text as the substring filter.
func (m *Machine) SetMode(ctx context.Context, mode Mode) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state.Mode == mode {
		return nil
	}

	state.Mode = mode

	if mode == RawQuery {
		m.grid.ClearSearch()
	} else {
		if err := m.reload(ctx); err != nil {
			return err
		}

		m.grid.Search(state.Query)
	}

	m.grid.Draw()
	m.commit(state)

	return nil
}

// Input updates the search text. In TextFilter mode the filter is applied
// at once; in RawQuery mode the text is only remembered until Submit.
func (m *Machine) Input(ctx context.Context, text string) error {
	m.mu.Lock()
	m.state.Query = text
	state := m.state
	m.mu.Unlock()

	if state.Mode != TextFilter {
		return nil
	}

	m.commit(state)

	return m.search(ctx, state)
}

// Submit runs the remembered text as a raw query. It does nothing in
// TextFilter mode. A query the dataset rejects leaves the grid untouched.
func (m *Machine) Submit(ctx context.Context) error {
	state := m.State()
	if state.Mode != RawQuery {
		return nil
	}

	m.commit(state)

	return m.search(ctx, state)
}

// commit makes state current and writes its token to the location.
func (m *Machine) commit(state SearchState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	m.loc.SetToken(state.Encode())
}

func (m *Machine) reload(ctx context.Context) error {
	rows, err := m.ds.Query(ctx, m.base)
	if err != nil {
		return fmt.Errorf("fetching rows: %w", err)
	}

	m.grid.Load(rows)

	return nil
}

func (m *Machine) search(ctx context.Context, state SearchState) error {
	if state.Mode == TextFilter {
		m.grid.Search(state.Query)
		m.grid.Draw()

		return nil
	}

	rows, err := m.ds.Query(ctx, m.base+" AND ("+state.Query+")")
	if err != nil {
		var syntaxErr *dataset.QuerySyntaxError
		if errors.As(err, &syntaxErr) {
			m.log.WithError(err).Debug("Ignoring rejected query")

			return nil
		}

		return fmt.Errorf("running query: %w", err)
	}

	m.grid.Load(rows)
	m.grid.Draw()

	return nil
}
