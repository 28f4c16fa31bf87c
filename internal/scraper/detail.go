package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IliaW/program-scraper/internal/browser"
	"github.com/IliaW/program-scraper/internal/cache"
	"github.com/IliaW/program-scraper/internal/extract"
	"github.com/IliaW/program-scraper/internal/model"
)

// DetailFetcher opens a program's detail page and resolves its program type and tuition cost.
type DetailFetcher struct {
	sel       *Selectors
	extractor *extract.Extractor
	cache     cache.DetailCache
	log       *slog.Logger
}

func NewDetailFetcher(sel *Selectors, extractor *extract.Extractor, c cache.DetailCache, log *slog.Logger) *DetailFetcher {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &DetailFetcher{sel: sel, extractor: extractor, cache: c, log: log}
}

// Fetch returns the record for summary. Fields that cannot be resolved hold model.NotFound. An error means
// the detail page could not be loaded and the summary produced no record.
func (f *DetailFetcher) Fetch(ctx context.Context, page browser.Page, summary model.ProgramSummary) (*model.ProgramRecord, error) {
	record := model.NewProgramRecord(summary)
	if fields, ok := f.cache.Get(summary.DetailURL); ok {
		f.log.Debug("detail fields found in cache.", slog.String("url", summary.DetailURL))
		record.DetailFields = fields
		return &record, nil
	}

	if err := page.Navigate(ctx, summary.DetailURL); err != nil {
		return nil, err
	}

	record.ProgramType = f.extractor.Extract(ctx, page, "program_type", extract.Selectors(f.sel.ProgramType...))
	record.TuitionCost = f.extractor.Extract(ctx, page, "tuition_cost", extract.Selectors(f.sel.TuitionCost...))
	if record.ProgramType == model.NotFound || record.TuitionCost == model.NotFound {
		if err := f.scanTables(ctx, page, &record.DetailFields); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("interrupted: %w", err)
	}

	f.cache.Set(summary.DetailURL, record.DetailFields)
	return &record, nil
}

// scanTables fills unresolved fields from generic two-column tables where the first cell is a label.
// Rows with a specific header are adopted before rows with a generic one, and each row fills at most one
// field. Resolved fields are never overwritten.
func (f *DetailFetcher) scanTables(ctx context.Context, page browser.Page, fields *model.DetailFields) error {
	rows, err := page.TableRows(ctx)
	if err != nil {
		if terminal(ctx, err) {
			return err
		}
		f.log.Debug("table scan failed.", slog.String("url", page.URL()), slog.String("err", err.Error()))
		return nil
	}
	for _, pass := range []matchStrength{specificMatch, genericMatch} {
		for _, row := range rows {
			if len(row) < 2 || row[1] == "" {
				continue
			}
			field, strength := classifyHeader(row[0])
			if strength != pass {
				continue
			}
			switch {
			case field == programTypeField && fields.ProgramType == model.NotFound:
				fields.ProgramType = row[1]
			case field == tuitionCostField && fields.TuitionCost == model.NotFound:
				fields.TuitionCost = row[1]
			}
		}
	}
	return nil
}
