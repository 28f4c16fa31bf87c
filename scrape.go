package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IliaW/program-scraper/internal/aws_s3"
	"github.com/IliaW/program-scraper/internal/broker"
	"github.com/IliaW/program-scraper/internal/browser"
	cacheClient "github.com/IliaW/program-scraper/internal/cache"
	"github.com/IliaW/program-scraper/internal/export"
	"github.com/IliaW/program-scraper/internal/extract"
	"github.com/IliaW/program-scraper/internal/model"
	"github.com/IliaW/program-scraper/internal/persistence"
	"github.com/IliaW/program-scraper/internal/report"
	"github.com/IliaW/program-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

var (
	keywords  []string
	mechanism int
	outputDir string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Searches the portal for every keyword and saves the program records.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(keywords) > 0 {
			cfg.ScraperSettings.Keywords = keywords
		}
		if mechanism >= 0 {
			cfg.ScraperSettings.ScrapeMechanism = mechanism
		}
		if outputDir != "" {
			cfg.OutputSettings.Dir = outputDir
		}
		if len(cfg.ScraperSettings.Keywords) == 0 {
			return errors.New("no keywords: pass --keyword or set scraper.keywords")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runScrape(ctx)
	},
}

func init() {
	scrapeCmd.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "search keyword, repeatable")
	scrapeCmd.Flags().IntVarP(&mechanism, "mechanism", "m", -1,
		fmt.Sprintf("scrape mechanism: %d %s, %d %s", model.Curl, model.Curl, model.HeadlessBrowser, model.HeadlessBrowser))
	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
}

func runScrape(ctx context.Context) error {
	cache, err := cacheClient.New(cfg.CacheSettings, log)
	if err != nil {
		return err
	}
	defer cache.Close()
	launcher, err := browser.NewLauncher(cfg.ScraperSettings, log)
	if err != nil {
		return err
	}
	sel := scraper.DefaultSelectors(cfg.SelectorSettings)
	orchestrator := scraper.NewOrchestrator(cfg.ScraperSettings, launcher,
		scraper.NewResultCollector(cfg.ScraperSettings, sel, log),
		scraper.NewDetailFetcher(sel, extract.NewExtractor(cfg.ScraperSettings.LocatorTimeout, log), cache, log),
		log)
	log.Info("starting scraper.", slog.String("env", cfg.Env), slog.String("version", cfg.Version))

	batch, runErr := orchestrator.Run(ctx, cfg.ScraperSettings.Keywords)
	if runErr != nil {
		log.Warn("scrape run ended early. saving partial results.", slog.String("err", runErr.Error()))
	}

	// The run context may already be canceled, sinks get their own.
	files := saveBatch(context.Background(), batch)
	report.WriteSummary(os.Stdout, batch, files)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// saveBatch hands the batch to every enabled sink and returns the written file paths.
// A failing sink is logged and does not stop the others.
func saveBatch(ctx context.Context, batch *model.ScrapeBatch) []string {
	files, err := export.NewWriter(cfg.OutputSettings, log).Write(batch)
	if err != nil {
		log.Error("failed to write output files.", slog.String("err", err.Error()))
	}

	if cfg.DbSettings.Enabled {
		if err = saveToDatabase(ctx, batch); err != nil {
			log.Error("failed to save batch to database.", slog.String("err", err.Error()))
		}
	}
	if cfg.KafkaSettings.Producer.Enabled {
		broker.Publish(batch, cfg.KafkaSettings.Producer, log)
	}
	if cfg.S3Settings.Enabled && len(files) > 0 {
		s3, err := aws_s3.NewS3BucketClient(ctx, cfg.S3Settings, log)
		if err != nil {
			log.Error("failed to connect to s3.", slog.String("err", err.Error()))
		} else {
			for _, link := range aws_s3.UploadAll(ctx, s3, batch.RunID, files, log) {
				log.Info("file uploaded.", slog.String("link", link))
			}
		}
	}

	return files
}

func saveToDatabase(ctx context.Context, batch *model.ScrapeBatch) error {
	db, err := persistence.Open(ctx, cfg.DbSettings, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	repo := persistence.NewBatchRepository(db, log)
	if err = repo.Migrate(ctx); err != nil {
		return err
	}
	return repo.Save(ctx, batch)
}

func closeDatabase(db *sql.DB) {
	log.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		log.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}
