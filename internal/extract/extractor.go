// Package extract resolves a single field from a rendered page by trying locator strategies in order.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IliaW/program-scraper/internal/browser"
	"github.com/IliaW/program-scraper/internal/model"
)

var errEmptyText = errors.New("empty text")

// Locator is one strategy for finding a field's value on a page.
type Locator func(ctx context.Context, p browser.Page) (string, error)

// By returns a locator reading the text of the first element matching sel.
func By(sel browser.Selector) Locator {
	return func(ctx context.Context, p browser.Page) (string, error) {
		return p.Text(ctx, sel)
	}
}

// Selectors turns an ordered selector list into an ordered locator list.
func Selectors(sels ...browser.Selector) []Locator {
	out := make([]Locator, 0, len(sels))
	for _, s := range sels {
		out = append(out, By(s))
	}
	return out
}

type Extractor struct {
	timeout time.Duration
	log     *slog.Logger
}

// NewExtractor bounds every locator attempt by timeout. A zero timeout leaves attempts bounded
// only by the caller's context.
func NewExtractor(timeout time.Duration, log *slog.Logger) *Extractor {
	return &Extractor{timeout: timeout, log: log}
}

// Extract returns the first non-empty trimmed value produced by locators, in order. Locator errors
// are treated as misses. When every locator misses it returns model.NotFound.
func (e *Extractor) Extract(ctx context.Context, p browser.Page, field string, locators []Locator) string {
	for i, locate := range locators {
		if ctx.Err() != nil {
			break
		}
		text, err := e.try(ctx, p, locate)
		if err != nil {
			e.log.Debug("locator missed.", slog.String("field", field), slog.Int("locator", i),
				slog.String("err", err.Error()))
			continue
		}
		e.log.Debug("field extracted.", slog.String("field", field), slog.Int("locator", i))
		return text
	}

	return model.NotFound
}

func (e *Extractor) try(ctx context.Context, p browser.Page, locate Locator) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("locator panicked: %v", r)
		}
	}()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text, err = locate(ctx, p)
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", errEmptyText
	}
	return text, nil
}
