package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/IliaW/program-scraper/config"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/gocolly/colly"
	"golang.org/x/net/html"
)

var errNoDocument = errors.New("no document loaded")

// StaticLauncher opens pages that fetch plain HTML over HTTP without running scripts.
// It suits portals that render results server side.
type StaticLauncher struct {
	cfg *config.ScraperConfig
	log *slog.Logger
}

func NewStaticLauncher(cfg *config.ScraperConfig, log *slog.Logger) *StaticLauncher {
	return &StaticLauncher{cfg: cfg, log: log}
}

func (l *StaticLauncher) Open(_ context.Context) (Page, error) {
	return &StaticPage{cfg: l.cfg, log: l.log}, nil
}

type StaticPage struct {
	cfg *config.ScraperConfig
	log *slog.Logger
	url string
	doc *goquery.Document
}

func (p *StaticPage) Navigate(ctx context.Context, target string) error {
	if err := p.request(ctx, http.MethodGet, target, nil); err != nil {
		return fmt.Errorf("navigate to %s: %w", target, err)
	}
	return nil
}

// request fetches target with a fresh collector and replaces the current document on success.
func (p *StaticPage) request(ctx context.Context, method, target string, form map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := colly.NewCollector()
	c.SetRequestTimeout(p.cfg.PageTimeout)
	c.UserAgent = p.cfg.UserAgent

	var body []byte
	var finalURL string
	c.OnResponse(func(resp *colly.Response) {
		body = resp.Body
		finalURL = resp.Request.URL.String()
	})
	c.OnError(func(resp *colly.Response, err error) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		p.log.Debug("request failed.", slog.String("url", target), slog.Int("status", status),
			slog.String("err", err.Error()))
	})

	done := make(chan error, 1)
	go func() {
		if method == http.MethodPost {
			done <- c.Post(target, form)
			return
		}
		done <- c.Visit(target)
	}()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	p.doc = doc
	p.url = finalURL
	return nil
}

func (p *StaticPage) find(sel Selector) ([]*html.Node, error) {
	if p.doc == nil || len(p.doc.Nodes) == 0 {
		return nil, errNoDocument
	}
	if sel.Strategy == ByXPath {
		nodes, err := htmlquery.QueryAll(p.doc.Nodes[0], sel.Expr)
		if err != nil {
			return nil, fmt.Errorf("xpath %q: %w", sel.Expr, err)
		}
		return nodes, nil
	}
	m, err := cascadia.Compile(sel.Expr)
	if err != nil {
		return nil, fmt.Errorf("css %q: %w", sel.Expr, err)
	}
	return p.doc.FindMatcher(m).Nodes, nil
}

func (p *StaticPage) Count(ctx context.Context, sel Selector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	nodes, err := p.find(sel)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (p *StaticPage) Text(ctx context.Context, sel Selector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	nodes, err := p.find(sel)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", ErrNotFound
	}
	return strings.TrimSpace(innerText(nodes[0])), nil
}

func (p *StaticPage) Cards(ctx context.Context, sel Selector) ([]Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := p.find(sel)
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(nodes))
	for _, n := range nodes {
		card := Card{Text: innerText(n)}
		s := goquery.NewDocumentFromNode(n).Selection
		anchor := s
		if !s.Is("a[href]") {
			anchor = s.Find("a[href]").First()
		}
		if href, ok := anchor.Attr("href"); ok {
			card.Href = href
			card.HasAnchor = true
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (p *StaticPage) TableRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, errNoDocument
	}
	var rows [][]string
	p.doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(innerText(td.Get(0))))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

// Search submits the form that owns the matched input, the way pressing Enter would.
func (p *StaticPage) Search(ctx context.Context, sel Selector, keyword string) error {
	nodes, err := p.find(sel)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return ErrNotFound
	}
	input := p.doc.FindNodes(nodes[0])
	form := input.Closest("form")

	name := input.AttrOr("name", input.AttrOr("id", "q"))
	values := url.Values{}
	form.Find("input[type=hidden][name]").Each(func(_ int, h *goquery.Selection) {
		values.Set(h.AttrOr("name", ""), h.AttrOr("value", ""))
	})
	values.Set(name, keyword)

	target, err := resolveURL(p.url, form.AttrOr("action", ""))
	if err != nil {
		return fmt.Errorf("search %q: %w", keyword, err)
	}
	if strings.EqualFold(form.AttrOr("method", http.MethodGet), http.MethodPost) {
		data := make(map[string]string, len(values))
		for k := range values {
			data[k] = values.Get(k)
		}
		err = p.request(ctx, http.MethodPost, target.String(), data)
	} else {
		target.RawQuery = values.Encode()
		err = p.request(ctx, http.MethodGet, target.String(), nil)
	}
	if err != nil {
		return fmt.Errorf("search %q: %w", keyword, err)
	}
	return nil
}

func (p *StaticPage) URL() string {
	return p.url
}

func (p *StaticPage) Close() error {
	p.doc = nil
	return nil
}

func resolveURL(base, ref string) (*url.URL, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return b.ResolveReference(r), nil
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true, "div": true,
	"dl": true, "dt": true, "fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// innerText approximates the browser's innerText: block elements start new lines, whitespace
// inside text collapses and scripts are skipped.
func innerText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if strings.TrimLeftFunc(n.Data, unicode.IsSpace) != n.Data {
				sb.WriteString(" ")
			}
			sb.WriteString(strings.Join(strings.Fields(n.Data), " "))
			if strings.TrimRightFunc(n.Data, unicode.IsSpace) != n.Data {
				sb.WriteString(" ")
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "br":
				sb.WriteString("\n")
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteString("\n")
		}
	}
	walk(n)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
