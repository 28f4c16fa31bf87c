package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IliaW/program-scraper/internal/dashboard"
	"github.com/IliaW/program-scraper/internal/export"
	"github.com/spf13/cobra"
)

var (
	dataFile string
	port     string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serves charts and a preview over a scraped CSV file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dataFile != "" {
			cfg.DashboardSettings.DataFile = dataFile
		}
		if port != "" {
			cfg.DashboardSettings.Port = port
		}
		if cfg.DashboardSettings.DataFile == "" {
			latest, err := export.Latest(cfg.OutputSettings.Dir, cfg.OutputSettings.FilePrefix, export.FormatCSV)
			if err != nil {
				return err
			}
			cfg.DashboardSettings.DataFile = latest
		}

		ds, err := dashboard.LoadCSV(cfg.DashboardSettings.DataFile)
		if err != nil {
			return err
		}
		log.Info("dataset loaded.", slog.String("file", cfg.DashboardSettings.DataFile),
			slog.Int("rows", len(ds.Rows)), slog.Int("columns", len(ds.Columns)))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return dashboard.NewServer(ds, cfg.DashboardSettings, log).Run(ctx)
	},
}

func init() {
	dashboardCmd.Flags().StringVarP(&dataFile, "file", "f", "", "CSV file to load (default: newest file in the output dir)")
	dashboardCmd.Flags().StringVarP(&port, "port", "p", "", "listen port")
}
