package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethpandaops/reportoor/pkg/fsutil"
	"github.com/ethpandaops/reportoor/pkg/render"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/ethpandaops/reportoor/pkg/stats"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the run statistics",
	Long: `Print the status counts, start time and runtime of the run. With
--category, print the crash component breakdown of a category instead.`,
	RunE: runStats,
}

var (
	statsCategory string
	statsChart    string
	statsOwner    string
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsCategory, "category", "",
		"show the component breakdown of this category (e.g. CRASHED)")
	statsCmd.Flags().StringVar(&statsChart, "chart", "",
		"also write the pie chart as SVG to this path")
	statsCmd.Flags().StringVar(&statsOwner, "owner", "",
		"ownership of the chart file as UID:GID")
}

func runStats(cmd *cobra.Command, _ []string) error {
	owner, err := fsutil.ParseOwner(statsOwner)
	if err != nil {
		return fmt.Errorf("parsing --owner: %w", err)
	}

	ctx := context.Background()

	return withReport(ctx, func(rep *report.Report) error {
		var chart stats.PieChart

		if statsCategory != "" {
			breakdown, err := rep.Categories(ctx, strings.ToUpper(statsCategory))
			if err != nil {
				return err
			}

			writeBreakdown(cmd.OutOrStdout(), breakdown)
			chart = breakdown.Chart()
		} else {
			summary, err := rep.Stats(ctx)
			if err != nil {
				return err
			}

			writeSummary(cmd.OutOrStdout(), summary)
			chart = summary.Chart()
		}

		if statsChart == "" {
			return nil
		}

		var buf bytes.Buffer
		if err := chart.RenderSVG(&buf, 0, 0); err != nil {
			return fmt.Errorf("rendering chart: %w", err)
		}

		if err := fsutil.ReplaceFile(statsChart, buf.Bytes(), 0o644, owner); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}

		log.WithField("path", statsChart).Info("Chart written")

		return nil
	})
}

func writeSummary(w io.Writer, s *stats.Summary) {
	fmt.Fprintln(w, styleHeader.Render("Statistics"))
	fmt.Fprintf(w, "%s %d\n", styleLabel.Render("Total run:"), s.Total)

	for _, sl := range s.Slices {
		fmt.Fprintf(w, "%s %d %s\n",
			swatch(sl.Color, sl.Label+":"), sl.Count,
			styleMuted.Render("("+render.Percent(sl.Count, s.Total)+")"))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", styleLabel.Render("Start time:"),
		s.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "%s %s %s\n", styleLabel.Render("Total runtime:"),
		render.FormatTime(s.WallTime(), true),
		styleMuted.Render(fmt.Sprintf("(CPU count: %d)", s.CPUCount)))

	if s.Notes != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.Notes)
	}
}

func writeBreakdown(w io.Writer, b *stats.Breakdown) {
	fmt.Fprintln(w, styleHeader.Render(b.Category+" components"))

	if len(b.Components) == 0 {
		fmt.Fprintln(w, styleMuted.Render("no components recorded"))

		return
	}

	for _, c := range b.Components {
		fmt.Fprintf(w, "%s %d %s\n", styleLabel.Render(c.Name+":"), c.Count,
			styleMuted.Render("("+render.Percent(c.Count, b.Total)+")"))
	}
}
