package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagInput    string
	flagOutput   string
	flagCountry  string
	flagTop      int
	flagExports  []string
	flagExportDB bool
)

func init() {
	runCmd.Flags().StringVarP(&flagInput, "input", "i", "", "Catalog export: tab-delimited file path or http(s) URL (env OFF_INPUT_PATH)")
	runCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Parquet report path (env OFF_OUTPUT_PATH, default ./afterData.parquet)")
	runCmd.Flags().StringVarP(&flagCountry, "country", "c", "", "Country substring to report on (env OFF_COUNTRY, default france)")
	runCmd.Flags().IntVarP(&flagTop, "top", "n", 0, "Brands shown in the console preview, 0 for all, negative to skip (env OFF_TOP_N, default 20)")
	runCmd.Flags().StringSliceVar(&flagExports, "export", nil, "Extra report files: .csv, .json or .xlsx (env OFF_EXPORTS)")
	runCmd.Flags().BoolVar(&flagExportDB, "export-db", false, "Store the brand rows in the run history (env OFF_EXPORT_DB)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the brand report pipeline once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateRun(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := engine.Open(engine.Options{
			Workers:       cfg.Workers,
			PartitionSize: cfg.PartitionSize,
			DBPath:        cfg.DBPath,
			Console:       cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		result, err := pipeline.Run(ctx, sess, cfg.RunSpec())
		if err != nil {
			return fmt.Errorf("run %s failed at %s stage: %w", sess.RunID(), result.FailedAt, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ %d brands from %d matching products written to %s (run %s)\n",
			len(result.Brands), result.Matched, cfg.OutputPath, result.RunID)
		return nil
	},
}
