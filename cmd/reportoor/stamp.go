package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/reportoor/pkg/descriptor"
	"github.com/ethpandaops/reportoor/pkg/fsutil"
	"github.com/spf13/cobra"
)

var stampCmd = &cobra.Command{
	Use:   "stamp <meta.yml>",
	Short: "Record the host CPU count and start time in a descriptor",
	Long: `Fill in cpu_count and start_time of a descriptor before a run is
published. Existing values are kept unless --force is given. The file is
created when it does not exist.`,
	Args: cobra.ExactArgs(1),
	RunE: runStamp,
}

var (
	stampCPUCount int
	stampForce    bool
	stampOwner    string
)

func init() {
	rootCmd.AddCommand(stampCmd)
	stampCmd.Flags().IntVar(&stampCPUCount, "cpu-count", 0,
		"CPU count to record (default: detected logical CPUs)")
	stampCmd.Flags().BoolVarP(&stampForce, "force", "f", false,
		"overwrite values already present")
	stampCmd.Flags().StringVar(&stampOwner, "owner", "",
		"ownership of the descriptor as UID:GID")
}

func runStamp(_ *cobra.Command, args []string) error {
	path := args[0]

	owner, err := fsutil.ParseOwner(stampOwner)
	if err != nil {
		return fmt.Errorf("parsing --owner: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	out, err := descriptor.Stamp(context.Background(), data, descriptor.StampOptions{
		CPUCount: stampCPUCount,
		Now:      time.Now(),
		Force:    stampForce,
	})
	if err != nil {
		return err
	}

	if err := fsutil.ReplaceFile(path, out, 0o644, owner); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	log.WithField("path", path).Info("Descriptor stamped")

	return nil
}
