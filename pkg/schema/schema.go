// Package schema derives the grid column set and per-record download
// actions from a report descriptor.
package schema

import (
	"fmt"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/descriptor"
	"github.com/ethpandaops/reportoor/pkg/render"
)

// DownloadsColumn is the name of the synthetic actions column.
const DownloadsColumn = "downloads"

// DetailMode selects how the detail view shows a column.
type DetailMode int

const (
	// UseGridRenderer shows the same display form as the grid.
	UseGridRenderer DetailMode = iota
	// ShowRaw shows the raw value even when the grid renders it.
	ShowRaw
)

// MarshalText implements encoding.TextMarshaler.
func (m DetailMode) MarshalText() ([]byte, error) {
	switch m {
	case UseGridRenderer:
		return []byte("grid"), nil
	case ShowRaw:
		return []byte("raw"), nil
	default:
		return nil, fmt.Errorf("unknown detail mode %d", int(m))
	}
}

// Column describes one grid column.
type Column struct {
	Name      string          `json:"name"`
	Data      string          `json:"data,omitempty"`
	Title     string          `json:"title"`
	Renderer  render.Renderer `json:"renderer"`
	ClassName string          `json:"class_name,omitempty"`
	Width     string          `json:"width,omitempty"`
	Orderable bool            `json:"orderable"`
	Detail    DetailMode      `json:"detail"`
}

// DataBacked reports whether the column reads a field of the record.
func (c Column) DataBacked() bool {
	return c.Data != ""
}

// Value returns the column's cell for a row in the given mode. Columns
// that are not data backed have no value.
func (c Column) Value(row dataset.Row, mode render.Mode) any {
	if !c.DataBacked() {
		return nil
	}

	return c.Renderer.Render(row.Get(c.Data), mode)
}

// Build returns the columns of the grid: the fixed record fields, the
// descriptor's extra columns in declared order, then the downloads column.
func Build(desc *descriptor.Descriptor) []Column {
	cols := []Column{
		{
			Name: "name", Data: "name", Title: "name",
			Renderer: render.Ellipsis, Width: "40%",
			Orderable: true, Detail: ShowRaw,
		},
		{
			Name: "elapsed_time", Data: "elapsed_time", Title: "time",
			Renderer: render.Time, ClassName: alignClass("right"),
			Orderable: true,
		},
		{
			Name: "exit_code", Data: "exit_code", Title: "exit code",
			ClassName: alignClass("right"), Orderable: true,
		},
		{
			Name: "status", Data: "status", Title: "status",
			Orderable: true,
		},
		{
			Name: "stacktrace_id", Data: "stacktrace_id", Title: "stacktrace id",
		},
	}

	if desc != nil {
		for _, extra := range desc.ExtraColumns {
			col := Column{
				Name:      extra.Name,
				Data:      extra.Name,
				Title:     extra.Label,
				Renderer:  render.Resolve(extra.Renderer),
				Orderable: true,
			}

			if extra.Align != "" {
				col.ClassName = alignClass(extra.Align)
			}

			cols = append(cols, col)
		}
	}

	return append(cols, Column{Name: DownloadsColumn, Title: DownloadsColumn})
}

// Find returns the index of the named column, or -1.
func Find(cols []Column, name string) int {
	for i := range cols {
		if cols[i].Name == name {
			return i
		}
	}

	return -1
}

// SortKey is one default ordering entry resolved to a column index.
type SortKey struct {
	Column     int  `json:"column"`
	Descending bool `json:"descending"`
}

// Order resolves the descriptor's ordering against the columns. Entries
// naming unknown columns are skipped.
func Order(desc *descriptor.Descriptor, cols []Column) []SortKey {
	if desc == nil {
		return nil
	}

	keys := make([]SortKey, 0, len(desc.Ordering))

	for _, o := range desc.Ordering {
		idx := Find(cols, o.Name)
		if idx < 0 {
			continue
		}

		keys = append(keys, SortKey{Column: idx, Descending: o.Descending()})
	}

	return keys
}

func alignClass(align string) string {
	return "dt-body-" + align
}
