package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/browser"
	"github.com/IliaW/program-scraper/internal/model"
)

// ResultCollector runs one keyword search on the portal and turns the rendered result cards into summaries.
type ResultCollector struct {
	cfg *config.ScraperConfig
	sel *Selectors
	log *slog.Logger
}

func NewResultCollector(cfg *config.ScraperConfig, sel *Selectors, log *slog.Logger) *ResultCollector {
	return &ResultCollector{cfg: cfg, sel: sel, log: log}
}

// Collect searches for keyword and returns one summary per result card that links to a detail page,
// in render order. A page without a search input or without result cards yields no summaries and no error.
func (c *ResultCollector) Collect(ctx context.Context, page browser.Page, keyword string) ([]model.ProgramSummary, error) {
	log := c.log.With(slog.String("keyword", keyword))

	if err := page.Navigate(ctx, c.cfg.BaseURL); err != nil {
		return nil, err
	}
	input, found, err := c.waitForAny(ctx, page, c.sel.SearchInput)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Warn("search input not found.", slog.String("url", page.URL()))
		return nil, nil
	}
	if err = page.Search(ctx, input, keyword); err != nil {
		if errors.Is(err, browser.ErrNotFound) && !terminal(ctx, err) {
			log.Warn("search input not usable.", slog.String("url", page.URL()), slog.String("err", err.Error()))
			return nil, nil
		}
		return nil, err
	}
	if err = sleep(ctx, c.cfg.SearchSettleDelay); err != nil {
		return nil, err
	}

	cards, err := c.findCards(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		log.Info("no results.")
		return nil, nil
	}

	summaries := make([]model.ProgramSummary, 0, len(cards))
	for i, card := range cards {
		if c.cfg.MaxResults > 0 && len(summaries) >= c.cfg.MaxResults {
			log.Debug("result limit reached.", slog.Int("max_results", c.cfg.MaxResults))
			break
		}
		href := strings.TrimSpace(card.Href)
		if !card.HasAnchor || href == "" {
			log.Debug("card has no detail link. skipping.", slog.Int("card", i))
			continue
		}
		summaries = append(summaries, model.NewProgramSummary(keyword, card.Text, resolveDetailURL(c.cfg.BaseURL, href)))
	}
	log.Info("results collected.", slog.Int("cards", len(cards)), slog.Int("summaries", len(summaries)))

	return summaries, nil
}

// waitForAny polls the selectors in order until one matches an element or the selector timeout passes.
func (c *ResultCollector) waitForAny(ctx context.Context, page browser.Page,
	selectors []browser.Selector) (browser.Selector, bool, error) {
	deadline := time.Now().Add(c.cfg.SelectorTimeout)
	for {
		for _, sel := range selectors {
			n, err := page.Count(ctx, sel)
			if err != nil {
				if terminal(ctx, err) {
					return browser.Selector{}, false, err
				}
				c.log.Debug("selector failed.", slog.String("selector", sel.String()), slog.String("err", err.Error()))
				continue
			}
			if n > 0 {
				return sel, true, nil
			}
		}
		if !time.Now().Before(deadline) {
			return browser.Selector{}, false, nil
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			return browser.Selector{}, false, err
		}
	}
}

// findCards returns the cards of the first container selector that matches at least one element.
func (c *ResultCollector) findCards(ctx context.Context, page browser.Page) ([]browser.Card, error) {
	for _, sel := range c.sel.ResultCard {
		cards, err := page.Cards(ctx, sel)
		if err != nil {
			if terminal(ctx, err) {
				return nil, err
			}
			c.log.Debug("result selector failed.", slog.String("selector", sel.String()),
				slog.String("err", err.Error()))
			continue
		}
		if len(cards) > 0 {
			c.log.Debug("result cards found.", slog.String("selector", sel.String()), slog.Int("count", len(cards)))
			return cards, nil
		}
	}
	return nil, nil
}

// resolveDetailURL makes href absolute. Hrefs that already carry a scheme are returned unchanged, relative
// ones are appended to base.
func resolveDetailURL(base, href string) string {
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "//"):
		scheme := "https"
		if u, err := url.Parse(base); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		return scheme + ":" + href
	default:
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
	}
}

// terminal reports whether err ends the whole run rather than the current item.
func terminal(ctx context.Context, err error) bool {
	return errors.Is(err, browser.ErrClosed) || ctx.Err() != nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
}
