package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/model"
)

var (
	ErrNotFound = errors.New("element not found")
	ErrClosed   = errors.New("browser closed")
)

type Strategy int

const (
	ByCSS Strategy = iota
	ByXPath
)

// Selector locates elements with either a CSS selector or an XPath expression.
type Selector struct {
	Strategy Strategy
	Expr     string
}

func CSS(expr string) Selector   { return Selector{Strategy: ByCSS, Expr: expr} }
func XPath(expr string) Selector { return Selector{Strategy: ByXPath, Expr: expr} }

const xpathPrefix = "xpath:"

// ParseSelector reads the config notation: "xpath:<expr>" or a plain CSS selector.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, xpathPrefix) {
		return XPath(strings.TrimSpace(strings.TrimPrefix(s, xpathPrefix)))
	}
	return CSS(s)
}

func ParseSelectors(list []string) []Selector {
	out := make([]Selector, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, ParseSelector(s))
	}
	return out
}

func (s Selector) String() string {
	if s.Strategy == ByXPath {
		return xpathPrefix + s.Expr
	}
	return s.Expr
}

// Card is a snapshot of one rendered result element.
type Card struct {
	Text      string `json:"text"`
	Href      string `json:"href"`
	HasAnchor bool   `json:"hasAnchor"`
}

// Page is a single browser tab. Implementations are not safe for concurrent use.
type Page interface {
	// Navigate loads url and blocks until the page has settled or ctx expires.
	Navigate(ctx context.Context, url string) error
	// Count returns how many elements match sel.
	Count(ctx context.Context, sel Selector) (int, error)
	// Text returns the trimmed text of the first element matching sel, or ErrNotFound.
	Text(ctx context.Context, sel Selector) (string, error)
	// Cards snapshots every element matching sel in document order.
	Cards(ctx context.Context, sel Selector) ([]Card, error)
	// TableRows returns the cell texts of every row of every table on the page.
	TableRows(ctx context.Context) ([][]string, error)
	// Search clears the input matched by sel, types keyword and submits it with Enter.
	// It returns ErrNotFound when the input is missing or cannot be typed into.
	Search(ctx context.Context, sel Selector, keyword string) error
	URL() string
	Close() error
}

type Launcher interface {
	Open(ctx context.Context) (Page, error)
}

// NewLauncher picks the page engine for the configured scrape mechanism.
func NewLauncher(cfg *config.ScraperConfig, log *slog.Logger) (Launcher, error) {
	switch model.ScrapeMechanism(cfg.ScrapeMechanism) {
	case model.Curl:
		return NewStaticLauncher(cfg, log), nil
	case model.HeadlessBrowser:
		return NewChromeLauncher(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported scrape mechanism %d", cfg.ScrapeMechanism)
	}
}
