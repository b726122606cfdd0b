package main

import (
	"context"
	"fmt"

	"github.com/ethpandaops/reportoor/pkg/detail"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/spf13/cobra"
)

var detailCmd = &cobra.Command{
	Use:   "detail <name|#fragment>",
	Short: "Print the detail view of a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetail,
}

func init() {
	rootCmd.AddCommand(detailCmd)
}

func runDetail(cmd *cobra.Command, args []string) error {
	name, ok := detail.NameFromFragment(args[0])
	if !ok {
		return fmt.Errorf("record name is required")
	}

	ctx := context.Background()

	return withReport(ctx, func(rep *report.Report) error {
		view, err := rep.Detail(ctx, name)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), styleHeader.Render(view.Name))
		fmt.Fprint(cmd.OutOrStdout(), view.Text())

		return nil
	})
}
