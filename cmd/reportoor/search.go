package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ethpandaops/reportoor/pkg/dataset"
	"github.com/ethpandaops/reportoor/pkg/query"
	"github.com/ethpandaops/reportoor/pkg/render"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the records of a page",
	Long: `Search the records of a report page. --token restores a state copied
from the browser location; --query then enters a text filter or, with
--mode raw, a SQL condition added to the page's base condition.`,
	RunE: runSearch,
}

var (
	searchPage   string
	searchToken  string
	searchQuery  string
	searchMode   string
	searchOffset int
	searchLimit  int
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchPage, "page", "all", "page to search")
	searchCmd.Flags().StringVar(&searchToken, "token", "", "search state token to restore")
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "text filter or SQL condition")
	searchCmd.Flags().StringVar(&searchMode, "mode", "text", "query mode (text, raw)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "rows to skip")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "rows to show (-1 for all)")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	req := report.SearchRequest{Page: searchPage, Token: searchToken}

	if cmd.Flags().Changed("query") {
		mode, err := query.ParseMode(searchMode)
		if err != nil {
			return err
		}

		req.Query = &searchQuery
		req.Mode = mode
	}

	ctx := context.Background()

	return withReport(ctx, func(rep *report.Report) error {
		res, err := rep.Search(ctx, req)
		if err != nil {
			return err
		}

		writeSearch(cmd.OutOrStdout(), res, searchOffset, searchLimit)

		return nil
	})
}

func writeSearch(w io.Writer, res *report.SearchResult, offset, limit int) {
	var headers []string

	for _, col := range res.Grid.Columns() {
		if !col.DataBacked() {
			continue
		}

		headers = append(headers, col.Title)
	}

	rows := res.Grid.Page(offset, limit)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleCell.Bold(true)
			}

			return styleCell
		})

	for _, row := range rows {
		cells := make([]string, 0, len(headers))

		for _, col := range res.Grid.Columns() {
			if !col.DataBacked() {
				continue
			}

			cells = append(cells, dataset.String(col.Value(row, render.Display)))
		}

		t.Row(cells...)
	}

	fmt.Fprintln(w, styleHeader.Render(res.Page.Title))
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, styleMuted.Render(fmt.Sprintf(
		"Showing %d of %d entries (%d total)",
		len(rows), res.Grid.Filtered(), res.Grid.Total(),
	)))

	if res.Token != "" {
		fmt.Fprintf(w, "%s #%s\n", styleLabel.Render("Token:"), res.Token)
	}
}
