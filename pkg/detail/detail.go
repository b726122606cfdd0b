// Package detail composes the full field set of a single record.
package detail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/descriptor"
	"github.com/ethpandaops/reportoor/pkg/render"
	"github.com/ethpandaops/reportoor/pkg/schema"
)

const recordQuery = "SELECT * FROM main WHERE name = ?"

// ErrNotFound is returned when no record has the requested name.
var ErrNotFound = errors.New("record not found")

// Dataset runs the record lookup.
type Dataset interface {
	Query(ctx context.Context, query string, args ...any) ([]dataset.Row, error)
}

// Field is one line of the detail view. The downloads column carries
// actions instead of a value.
type Field struct {
	Name    string          `json:"name"`
	Title   string          `json:"title"`
	Value   any             `json:"value,omitempty"`
	Actions []schema.Action `json:"actions,omitempty"`
}

// View is a record with every column resolved.
type View struct {
	Name   string          `json:"name"`
	Record *dataset.Record `json:"record"`
	Fields []Field         `json:"fields"`
}

// NameFromFragment returns the record name addressed by a detail location
// fragment.
func NameFromFragment(fragment string) (string, bool) {
	name := strings.TrimPrefix(fragment, "#")

	return name, name != ""
}

// Compose looks up a record and resolves it against the grid columns.
// Columns whose detail mode is ShowRaw, or that have no renderer, show the
// raw value.
func Compose(
	ctx context.Context,
	ds Dataset,
	desc *descriptor.Descriptor,
	name string,
) (*View, error) {
	rows, err := ds.Query(ctx, recordQuery, name)
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", name, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	row := rows[0]

	rec, err := dataset.DecodeRecord(row)
	if err != nil {
		return nil, err
	}

	cols := schema.Build(desc)
	view := &View{
		Name:   rec.Name,
		Record: rec,
		Fields: make([]Field, 0, len(cols)),
	}

	for _, col := range cols {
		field := Field{Name: col.Name, Title: col.Title}

		if !col.DataBacked() {
			field.Actions = schema.Actions(desc, rec, true)
		} else {
			mode := render.Display
			if col.Renderer == render.None || col.Detail == schema.ShowRaw {
				mode = render.Raw
			}

			field.Value = col.Value(row, mode)
		}

		view.Fields = append(view.Fields, field)
	}

	return view, nil
}

// Text renders the view as "title: value" lines.
func (v *View) Text() string {
	var sb strings.Builder

	for _, f := range v.Fields {
		if f.Actions != nil {
			labels := make([]string, 0, len(f.Actions))
			for _, a := range f.Actions {
				labels = append(labels, fmt.Sprintf("%s (%s)", a.Label, a.Target))
			}

			fmt.Fprintf(&sb, "%s: %s\n", f.Title, strings.Join(labels, ", "))

			continue
		}

		fmt.Fprintf(&sb, "%s: %s\n", f.Title, dataset.String(f.Value))
	}

	return sb.String()
}
