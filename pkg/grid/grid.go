// Package grid is an in-memory table that holds dataset rows, filters them
// by substring and keeps them in the descriptor's default order.
package grid

import (
	"sort"
	"strings"
	"sync"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/schema"
)

// Table is a grid over dataset rows. Changes to its data or search text
// become visible on the next Draw.
type Table struct {
	mu      sync.RWMutex
	columns []schema.Column
	order   []schema.SortKey
	data    []dataset.Row
	search  string
	view    []dataset.Row
	draws   int
}

// New creates an empty table with the given columns and default order.
func New(columns []schema.Column, order []schema.SortKey) *Table {
	return &Table{
		columns: columns,
		order:   order,
	}
}

// Columns returns the table's columns.
func (t *Table) Columns() []schema.Column {
	return t.columns
}

// Load replaces the table data.
func (t *Table) Load(rows []dataset.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data = rows
}

// Search sets the substring filter.
func (t *Table) Search(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.search = text
}

// ClearSearch removes the substring filter.
func (t *Table) ClearSearch() {
	t.Search("")
}

// SearchText returns the current substring filter.
func (t *Table) SearchText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.search
}

// Draw recomputes the visible rows from the data, the filter and the order.
func (t *Table) Draw() {
	t.mu.Lock()
	defer t.mu.Unlock()

	terms := strings.Fields(strings.ToLower(t.search))

	view := make([]dataset.Row, 0, len(t.data))
	for _, row := range t.data {
		if t.matches(row, terms) {
			view = append(view, row)
		}
	}

	if len(t.order) > 0 {
		sort.SliceStable(view, func(i, j int) bool {
			return t.less(view[i], view[j])
		})
	}

	t.view = view
	t.draws++
}

// Draws returns how many times the table was drawn.
func (t *Table) Draws() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.draws
}

// Total returns the number of loaded rows.
func (t *Table) Total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.data)
}

// Filtered returns the number of visible rows as of the last Draw.
func (t *Table) Filtered() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.view)
}

// Rows returns the visible rows as of the last Draw.
func (t *Table) Rows() []dataset.Row {
	return t.Page(0, -1)
}

// Page returns up to limit visible rows starting at offset. A negative limit
// returns every row after offset.
func (t *Table) Page(offset, limit int) []dataset.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}

	if offset >= len(t.view) {
		return []dataset.Row{}
	}

	end := len(t.view)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]dataset.Row, end-offset)
	copy(out, t.view[offset:end])

	return out
}

// matches reports whether every term occurs in some data-backed column.
func (t *Table) matches(row dataset.Row, terms []string) bool {
	for _, term := range terms {
		found := false

		for _, col := range t.columns {
			if !col.DataBacked() {
				continue
			}

			if strings.Contains(strings.ToLower(dataset.String(row.Get(col.Data))), term) {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

func (t *Table) less(a, b dataset.Row) bool {
	for _, key := range t.order {
		if key.Column < 0 || key.Column >= len(t.columns) {
			continue
		}

		field := t.columns[key.Column].Data
		if field == "" {
			continue
		}

		c := compare(a.Get(field), b.Get(field))
		if c == 0 {
			continue
		}

		if key.Descending {
			return c > 0
		}

		return c < 0
	}

	return false
}

// compare orders NULL first, then numbers numerically, then everything
// else by its string form.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	fa, okA := number(a)
	fb, okB := number(b)

	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(dataset.String(a), dataset.String(b))
}

func number(v any) (float64, bool) {
	switch v.(type) {
	case string, []byte:
		return 0, false
	}

	return dataset.Float(v)
}
