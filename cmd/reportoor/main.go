package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFiles  []string
	logLevel  string
	sourceDir string
	log       *logrus.Logger
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "reportoor",
	Short: "Browse the results of a published test run",
	Long: `Reportoor serves and inspects published test runs: a SQLite snapshot of
every execution, a meta.yml descriptor and per-record artifact directories,
read from a local directory or an S3 bucket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "reportoor %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&cfgFiles, "config", nil,
		"config file path (can be repeated, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level ("+strings.Join(logLevels(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&sourceDir, "dir", "",
		"read the run from this local directory instead of the configured source")

	rootCmd.AddCommand(versionCmd)
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}

// loadConfig loads the config files and applies --dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if sourceDir != "" {
		cfg.UseLocalDir(sourceDir)
	}

	return cfg, nil
}

// openReport opens the run described by the config's source section.
func openReport(ctx context.Context, cfg *config.Config) (*report.Report, error) {
	if err := cfg.ValidateSource(); err != nil {
		return nil, fmt.Errorf("validating source config: %w", err)
	}

	store, err := artifact.New(&cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("creating artifact store: %w", err)
	}

	log.WithField("location", store.Location()).Debug("Opening report")

	rep, err := report.Open(ctx, log, store, &cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}

	return rep, nil
}

// withReport loads the config, opens the report and runs fn on it.
func withReport(ctx context.Context, fn func(rep *report.Report) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rep, err := openReport(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = rep.Close() }()

	return fn(rep)
}
