// Package stats aggregates a run's records into overall and per-category
// statistics.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/descriptor"
	"github.com/ethpandaops/reportoor/pkg/render"
)

const overallQuery = `
SELECT
	COUNT(*) AS total,
	SUM(IIF(status = 'OK', 1, 0)) AS ok,
	SUM(IIF(status = 'FAILED', 1, 0)) AS failed,
	SUM(IIF(status = 'OOM', 1, 0)) AS oomed,
	SUM(IIF(status = 'CRASHED', 1, 0)) AS crashed,
	SUM(IIF(status = 'TIMED_OUT', 1, 0)) AS timed_out,
	SUM(elapsed_time) AS total_time
FROM main`

const categoryQuery = "SELECT name, count FROM crash_components WHERE category = ?"

// Dataset runs the aggregation queries.
type Dataset interface {
	Query(ctx context.Context, query string, args ...any) ([]dataset.Row, error)
}

// Slice is the count of one status.
type Slice struct {
	Label  string         `json:"label"`
	Status dataset.Status `json:"status"`
	Count  int64          `json:"count"`
	Color  string         `json:"color"`
}

// slices lists the statuses in display order with the column of the
// overall query holding their count.
var slices = []struct {
	label  string
	status dataset.Status
	field  string
	color  string
}{
	{"Successes", dataset.StatusOK, "ok", "#00e396"},
	{"Failures", dataset.StatusFailed, "failed", "#e6c000"},
	{"Crashes", dataset.StatusCrashed, "crashed", "#f93636"},
	{"Timed out", dataset.StatusTimedOut, "timed_out", "#fc923c"},
	{"OOMs", dataset.StatusOOM, "oomed", "#3c63fc"},
}

// Summary is the overall statistics of a run.
type Summary struct {
	Total        int64     `json:"total"`
	Slices       []Slice   `json:"slices"`
	TotalElapsed float64   `json:"total_elapsed"`
	CPUCount     int       `json:"cpu_count"`
	StartTime    time.Time `json:"start_time"`
	Notes        string    `json:"notes,omitempty"`
}

// Overall computes the run summary with a single aggregate query.
func Overall(ctx context.Context, ds Dataset, desc *descriptor.Descriptor) (*Summary, error) {
	rows, err := ds.Query(ctx, overallQuery)
	if err != nil {
		return nil, fmt.Errorf("querying overall stats: %w", err)
	}

	if len(rows) != 1 {
		return nil, fmt.Errorf("querying overall stats: got %d rows", len(rows))
	}

	row := rows[0]

	s := &Summary{
		Total:     dataset.Int(row.Get("total")),
		Slices:    make([]Slice, 0, len(slices)),
		CPUCount:  desc.EffectiveCPUCount(),
		StartTime: desc.Start(),
		Notes:     desc.Notes,
	}

	s.TotalElapsed, _ = dataset.Float(row.Get("total_time"))

	for _, def := range slices {
		s.Slices = append(s.Slices, Slice{
			Label:  def.label,
			Status: def.status,
			Count:  dataset.Int(row.Get(def.field)),
			Color:  def.color,
		})
	}

	return s, nil
}

// Count returns the number of records with the given status.
func (s *Summary) Count(status dataset.Status) int64 {
	for _, sl := range s.Slices {
		if sl.Status == status {
			return sl.Count
		}
	}

	return 0
}

// WallTime is the summed elapsed time spread over the run's CPUs.
func (s *Summary) WallTime() float64 {
	cpus := s.CPUCount
	if cpus < 1 {
		cpus = 1
	}

	return s.TotalElapsed / float64(cpus)
}

// Text renders the textual summary.
func (s *Summary) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Statistics:\nTotal run: %d\n", s.Total)

	for _, sl := range s.Slices {
		fmt.Fprintf(&b, "%s: %d (%s)\n", sl.Label, sl.Count, render.Percent(sl.Count, s.Total))
	}

	fmt.Fprintf(&b, "\nStart time: %s\n", s.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total runtime: %s (CPU count: %d)", render.FormatTime(s.WallTime(), true), s.CPUCount)

	if s.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Notes)
	}

	return b.String()
}

// Chart returns the status pie chart.
func (s *Summary) Chart() PieChart {
	c := PieChart{
		Labels: make([]string, 0, len(s.Slices)),
		Series: make([]float64, 0, len(s.Slices)),
		Colors: make([]string, 0, len(s.Slices)),
	}

	for _, sl := range s.Slices {
		c.Labels = append(c.Labels, sl.Label)
		c.Series = append(c.Series, float64(sl.Count))
		c.Colors = append(c.Colors, sl.Color)
	}

	return c
}

// CategoryStat is the count of one component within a category.
type CategoryStat struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Count    int64  `json:"count"`
}

// Breakdown is the per-component statistics of a category, largest first.
type Breakdown struct {
	Category   string         `json:"category"`
	Components []CategoryStat `json:"components"`
	Total      int64          `json:"total"`
}

// Categories computes the component breakdown of a category. Components
// with equal counts keep the order the dataset returned them in.
func Categories(ctx context.Context, ds Dataset, category string) (*Breakdown, error) {
	rows, err := ds.Query(ctx, categoryQuery, category)
	if err != nil {
		return nil, fmt.Errorf("querying %s components: %w", category, err)
	}

	b := &Breakdown{
		Category:   category,
		Components: make([]CategoryStat, 0, len(rows)),
	}

	for _, row := range rows {
		stat := CategoryStat{
			Category: category,
			Name:     dataset.String(row.Get("name")),
			Count:    dataset.Int(row.Get("count")),
		}

		b.Components = append(b.Components, stat)
		b.Total += stat.Count
	}

	sort.SliceStable(b.Components, func(i, j int) bool {
		return b.Components[i].Count > b.Components[j].Count
	})

	return b, nil
}

// Text renders one "name: count (percent)" line per component.
func (b *Breakdown) Text() string {
	var sb strings.Builder

	for _, c := range b.Components {
		fmt.Fprintf(&sb, "%s: %d (%s)\n", c.Name, c.Count, render.Percent(c.Count, b.Total))
	}

	return sb.String()
}

// Chart returns the component pie chart. It has no colors and no legend.
func (b *Breakdown) Chart() PieChart {
	c := PieChart{
		Labels: make([]string, 0, len(b.Components)),
		Series: make([]float64, 0, len(b.Components)),
	}

	for _, comp := range b.Components {
		c.Labels = append(c.Labels, comp.Name)
		c.Series = append(c.Series, float64(comp.Count))
	}

	return c
}
