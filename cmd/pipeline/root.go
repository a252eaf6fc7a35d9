package main

import (
	"context"
	"fmt"
	"os"

	"off-data-pipeline/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	flagWorkers       int
	flagPartitionSize int
	flagDBPath        string
)

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagWorkers, "workers", "w", 0, "Worker goroutines (env OFF_WORKERS, default number of CPUs)")
	rootCmd.PersistentFlags().IntVar(&flagPartitionSize, "partition-size", 0, "Rows per partition (env OFF_PARTITION_SIZE)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Run history database, empty disables it (env OFF_DB_PATH)")
}

var rootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "OpenFoodFacts brand report pipeline",
	Long:          "Loads an OpenFoodFacts catalog export, cleans it, aggregates brands sold in a country and writes the report as Parquet.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		cfg = loaded
		return cfg.Validate()
	},
}

// applyFlags overrides environment settings with the flags given on the command line
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		c.Workers = flagWorkers
	}
	if flags.Changed("partition-size") {
		c.PartitionSize = flagPartitionSize
	}
	if flags.Changed("db") {
		c.DBPath = flagDBPath
	}
	if flags.Changed("input") {
		c.InputPath = flagInput
	}
	if flags.Changed("output") {
		c.OutputPath = flagOutput
	}
	if flags.Changed("country") {
		c.Country = flagCountry
	}
	if flags.Changed("top") {
		c.TopN = flagTop
	}
	if flags.Changed("export") {
		c.Exports = flagExports
	}
	if flags.Changed("export-db") {
		c.ExportDB = flagExportDB
	}
	if flags.Changed("addr") {
		c.HTTPAddr = flagAddr
	}
	if flags.Changed("output-dir") {
		c.OutputDir = flagOutputDir
	}
	if flags.Changed("timeout") {
		c.RunTimeout = flagTimeout
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
