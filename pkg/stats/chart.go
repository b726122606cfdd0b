package stats

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when a chart has no non-zero value to draw.
var ErrNoData = errors.New("no data to chart")

// Default chart size in pixels.
const (
	DefaultChartWidth  = 512
	DefaultChartHeight = 512
)

// PieChart is the configuration of a pie chart. Colors is empty when the
// chart uses the default palette.
type PieChart struct {
	Labels []string  `json:"labels"`
	Series []float64 `json:"series"`
	Colors []string  `json:"colors,omitempty"`
	Legend bool      `json:"legend"`
}

// RenderSVG draws the chart as SVG. Zero values are left out since they
// have no slice.
func (p PieChart) RenderSVG(w io.Writer, width, height int) error {
	if width <= 0 {
		width = DefaultChartWidth
	}

	if height <= 0 {
		height = DefaultChartHeight
	}

	values := make([]chart.Value, 0, len(p.Series))

	for i, v := range p.Series {
		if v <= 0 {
			continue
		}

		value := chart.Value{Value: v}
		if i < len(p.Labels) {
			value.Label = p.Labels[i]
		}

		if i < len(p.Colors) && p.Colors[i] != "" {
			value.Style = chart.Style{
				FillColor:   drawing.ColorFromHex(strings.TrimPrefix(p.Colors[i], "#")),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			}
		}

		values = append(values, value)
	}

	if len(values) == 0 {
		return ErrNoData
	}

	pie := chart.PieChart{
		Width:  width,
		Height: height,
		Values: values,
	}

	if err := pie.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("rendering pie chart: %w", err)
	}

	return nil
}
