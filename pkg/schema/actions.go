package schema

import (
	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/descriptor"
)

// ActionKind tells how an action is carried out.
type ActionKind string

const (
	// Link downloads or opens the target path.
	Link ActionKind = "link"
	// TraceView hands the record's trace off to the external viewer.
	TraceView ActionKind = "trace_view"
	// Reproducer builds the record's reproducer archive.
	Reproducer ActionKind = "reproducer"
)

// DetailPage is the page that renders a single record.
const DetailPage = "binary.html"

// Action is one entry of a record's downloads cell.
type Action struct {
	Label  string     `json:"label"`
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target"`
}

// DetailTarget returns the address of a record's detail view. The fragment
// is the record name.
func DetailTarget(name string) string {
	return DetailPage + "#" + name
}

// Actions builds the downloads cell of a record. The detail link is left
// out when the record is already shown in its detail view.
func Actions(desc *descriptor.Descriptor, rec *dataset.Record, inDetail bool) []Action {
	actions := []Action{
		{Label: "Bin", Kind: Link, Target: artifact.InputPath(rec.Name)},
	}

	if desc != nil {
		for _, d := range desc.Downloads {
			actions = append(actions, Action{
				Label: d.Label, Kind: Link, Target: artifact.RecordPath(rec.Name, d.Name),
			})
		}
	}

	actions = append(actions, Action{Label: "Log", Kind: Link, Target: artifact.LogPath(rec.Name)})

	if rec.HasTrace {
		actions = append(actions,
			Action{Label: "Trace", Kind: Link, Target: artifact.TracePath(rec.Name)},
			Action{Label: "View", Kind: TraceView, Target: rec.Name},
		)
	}

	actions = append(actions,
		Action{Label: "Repro", Kind: Reproducer, Target: rec.Name},
		Action{Label: "Files", Kind: Link, Target: artifact.DirPath(rec.Name)},
	)

	if !inDetail {
		actions = append(actions, Action{Label: "Detail", Kind: Link, Target: DetailTarget(rec.Name)})
	}

	return actions
}
