package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/pipeline"
	"off-data-pipeline/internal/store"

	"github.com/spf13/cobra"
)

func init() {
	runsCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tINPUT\tOUTPUT")
		for _, run := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				run.ID, run.Status, run.CreatedAt.Local().Format(time.DateTime), run.Spec.InputPath, run.Spec.OutputPath)
		}
		return tw.Flush()
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <run-id>",
	Short: "Re-run a failed run with its stored settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := engine.Open(engine.Options{
			RunID:         args[0],
			Workers:       cfg.Workers,
			PartitionSize: cfg.PartitionSize,
			DBPath:        cfg.DBPath,
			Console:       cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		result, err := pipeline.RetryRun(ctx, sess, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ run %s completed: %d brands written to %s\n",
			result.RunID, len(result.Brands), result.Spec.OutputPath)
		return nil
	},
}

func openHistory() (*store.DB, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("run history is disabled (set --db or OFF_DB_PATH)")
	}
	return store.Open(cfg.DBPath)
}
