package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/reportoor/pkg/upload"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <run-dir>",
	Short: "Upload a run directory to the configured S3 source",
	Long: `Upload a local run directory (snapshot, descriptor and record artifacts)
to the bucket and prefix of the s3 source, where serve reads it from.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

var (
	publishACL          string
	publishStorageClass string
	publishConcurrency  int
	publishSkipCheck    bool
)

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishACL, "acl", "", "canned ACL of uploaded objects")
	publishCmd.Flags().StringVar(&publishStorageClass, "storage-class", "",
		"storage class of uploaded objects")
	publishCmd.Flags().IntVar(&publishConcurrency, "concurrency", 0,
		"parallel artifact uploads (default 8)")
	publishCmd.Flags().BoolVar(&publishSkipCheck, "skip-preflight", false,
		"skip the bucket write test")
}

func runPublish(_ *cobra.Command, args []string) error {
	runDir := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if sourceDir != "" {
		return fmt.Errorf("--dir cannot be combined with publish")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploader, err := upload.NewS3Uploader(log, &cfg.Source, upload.Options{
		ACL:          publishACL,
		StorageClass: publishStorageClass,
		Concurrency:  publishConcurrency,
	})
	if err != nil {
		return err
	}

	if !publishSkipCheck {
		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("preflight: %w", err)
		}
	}

	count, err := uploader.Upload(ctx, runDir)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", runDir, err)
	}

	log.WithField("files", count).
		WithField("run_dir", runDir).
		Info("Run published")

	return nil
}
