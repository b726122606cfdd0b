package main

import (
	"context"
	"fmt"

	"github.com/ethpandaops/reportoor/pkg/fsutil"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/ethpandaops/reportoor/pkg/reproducer"
	"github.com/spf13/cobra"
)

var reproCmd = &cobra.Command{
	Use:   "repro <name>",
	Short: "Download the reproducer archive of a record",
	Long: `Build the reproducer archive of a record: its input artifact and a go.sh
script re-running the test harness on it.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepro,
}

var (
	reproOutput string
	reproOwner  string
)

func init() {
	rootCmd.AddCommand(reproCmd)
	reproCmd.Flags().StringVarP(&reproOutput, "output", "o", "",
		"output file path (default: <basename>-reproducer.tar)")
	reproCmd.Flags().StringVar(&reproOwner, "owner", "",
		"ownership of the archive as UID:GID")
}

func runRepro(_ *cobra.Command, args []string) error {
	name := args[0]

	owner, err := fsutil.ParseOwner(reproOwner)
	if err != nil {
		return fmt.Errorf("parsing --owner: %w", err)
	}

	output := reproOutput
	if output == "" {
		output = reproducer.FileName(name)
	}

	ctx := context.Background()

	return withReport(ctx, func(rep *report.Report) error {
		archive, err := rep.Reproducer(ctx, name)
		if err != nil {
			return err
		}

		if archive == nil {
			return fmt.Errorf("no reproducer available for %s", name)
		}

		if err := fsutil.ReplaceFile(output, archive, 0o644, owner); err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}

		log.WithField("name", name).
			WithField("output", output).
			Info("Reproducer written")

		return nil
	})
}
