package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "off-data-pipeline/docs"
	"off-data-pipeline/internal/api"
	"off-data-pipeline/internal/api/handler"
	"off-data-pipeline/internal/store"
	"off-data-pipeline/pkg/router"

	"github.com/spf13/cobra"
)

var (
	flagAddr      string
	flagOutputDir string
	flagTimeout   string
)

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (env OFF_HTTP_ADDR, default :8080)")
	serveCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "Directory for reports of API runs (env OFF_OUTPUT_DIR, default ./output)")
	serveCmd.Flags().StringVar(&flagTimeout, "timeout", "", "Timeout of one API run (env OFF_RUN_TIMEOUT, default 30m)")
	serveCmd.Flags().StringVarP(&flagCountry, "country", "c", "", "Default country of API runs (env OFF_COUNTRY, default france)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DBPath == "" {
			return errors.New("serve needs a run history database (--db or OFF_DB_PATH)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Init DB
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer db.Close()

		h := handler.NewRunHandler(ctx, db, cfg)
		defer h.Wait()

		r := router.New()
		api.RegisterRoutes(r, h)

		return r.Start(ctx, cfg.HTTPAddr)
	},
}
