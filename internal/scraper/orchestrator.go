package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/browser"
	"github.com/IliaW/program-scraper/internal/model"
)

type Collector interface {
	Collect(ctx context.Context, page browser.Page, keyword string) ([]model.ProgramSummary, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, page browser.Page, summary model.ProgramSummary) (*model.ProgramRecord, error)
}

// Orchestrator drives a scrape run over a single page: every keyword is searched first, then every
// collected detail page is visited in order.
type Orchestrator struct {
	cfg       *config.ScraperConfig
	launcher  browser.Launcher
	collector Collector
	fetcher   Fetcher
	log       *slog.Logger
}

func NewOrchestrator(cfg *config.ScraperConfig, launcher browser.Launcher, collector Collector, fetcher Fetcher,
	log *slog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, launcher: launcher, collector: collector, fetcher: fetcher, log: log}
}

// Run scrapes keywords into a batch. Failed keywords and detail pages are recorded in the batch and skipped.
// When ctx is canceled or the browser dies the batch built so far is returned along with the error.
func (o *Orchestrator) Run(ctx context.Context, keywords []string) (*model.ScrapeBatch, error) {
	batch := model.NewScrapeBatch(keywords, model.ScrapeMechanism(o.cfg.ScrapeMechanism))
	defer func() { batch.FinishedAt = time.Now().UTC() }()
	o.log.Info("starting scrape run.", slog.String("run_id", batch.RunID), slog.Int("keywords", len(keywords)),
		slog.String("mechanism", batch.Mechanism))

	page, err := o.launcher.Open(ctx)
	if err != nil {
		return batch, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			o.log.Warn("failed to close page.", slog.String("err", err.Error()))
		}
	}()

	summaries, err := o.collectAll(ctx, page, keywords, batch)
	batch.SummaryCount = len(summaries)
	if err != nil {
		return batch, err
	}
	o.log.Info("collection finished.", slog.Int("summaries", len(summaries)))

	if err = o.fetchAll(ctx, page, summaries, batch); err != nil {
		return batch, err
	}
	o.log.Info("scrape run finished.", slog.String("run_id", batch.RunID), slog.Int("records", batch.Len()),
		slog.Int("failures", len(batch.Failures)))

	return batch, nil
}

func (o *Orchestrator) collectAll(ctx context.Context, page browser.Page, keywords []string,
	batch *model.ScrapeBatch) ([]model.ProgramSummary, error) {
	var summaries []model.ProgramSummary
	for i, keyword := range keywords {
		if i > 0 {
			if err := sleep(ctx, o.cfg.KeywordDelay); err != nil {
				return summaries, err
			}
		}
		found, err := o.collect(ctx, page, keyword)
		if err != nil {
			if terminal(ctx, err) {
				return summaries, o.stopErr(ctx, err)
			}
			o.log.Error("search failed.", slog.Int("index", i), slog.String("keyword", keyword),
				slog.String("err", err.Error()))
			batch.Fail(model.ItemFailure{Phase: model.PhaseCollect, Index: i, Target: keyword, Reason: err.Error()})
			continue
		}
		summaries = append(summaries, found...)
	}
	return summaries, nil
}

func (o *Orchestrator) fetchAll(ctx context.Context, page browser.Page, summaries []model.ProgramSummary,
	batch *model.ScrapeBatch) error {
	for i, s := range summaries {
		record, err := o.fetch(ctx, page, s)
		if err != nil {
			if terminal(ctx, err) {
				return o.stopErr(ctx, err)
			}
			o.log.Error("detail fetch failed. skipping.", slog.Int("index", i), slog.String("url", s.DetailURL),
				slog.String("err", err.Error()))
			batch.Fail(model.ItemFailure{Phase: model.PhaseFetch, Index: i, Target: s.DetailURL, Reason: err.Error()})
		} else {
			batch.Append(*record)
			o.log.Debug("record added.", slog.Int("index", i), slog.String("program", record.ProgramName))
		}
		if err = sleep(ctx, o.cfg.ItemDelay); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) collect(ctx context.Context, page browser.Page, keyword string) (found []model.ProgramSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("PANIC!", slog.String("keyword", keyword), slog.Any("err", r))
			found, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return o.collector.Collect(ctx, page, keyword)
}

func (o *Orchestrator) fetch(ctx context.Context, page browser.Page, s model.ProgramSummary) (record *model.ProgramRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("PANIC!", slog.String("url", s.DetailURL), slog.Any("err", r))
			record, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return o.fetcher.Fetch(ctx, page, s)
}

func (o *Orchestrator) stopErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		o.log.Warn("scrape run interrupted.", slog.String("err", ctxErr.Error()))
		return fmt.Errorf("interrupted: %w", ctxErr)
	}
	o.log.Error("browser is gone. stopping the run.", slog.String("err", err.Error()))
	return err
}
