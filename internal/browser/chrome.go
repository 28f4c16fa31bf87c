package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	jsoniter "github.com/json-iterator/go"
)

// findElementsJS resolves a selector to an array of nodes. kind 1 is XPath, anything else CSS.
const findElementsJS = `const __find = (kind, expr) => {
	if (kind === 1) {
		const snap = document.evaluate(expr, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < snap.snapshotLength; i++) out.push(snap.snapshotItem(i));
		return out;
	}
	return Array.from(document.querySelectorAll(expr));
};
const __text = (el) => ((el.innerText || el.textContent || '') + '');`

type ChromeLauncher struct {
	cfg *config.ScraperConfig
	log *slog.Logger
}

func NewChromeLauncher(cfg *config.ScraperConfig, log *slog.Logger) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg, log: log}
}

// Open starts a browser process with a single tab.
func (l *ChromeLauncher) Open(ctx context.Context) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.UserAgent(l.cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, args ...any) {
		l.log.Debug(fmt.Sprintf(format, args...))
	}))
	p := &ChromePage{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		cfg:         l.cfg,
		log:         l.log,
	}

	// The first Run allocates the browser and must use the tab context itself,
	// a derived context would tie the browser lifetime to it.
	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(tabCtx, enableLifeCycleEvents()) }()
	select {
	case err := <-launched:
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	case <-ctx.Done():
		_ = p.Close()
		return nil, ctx.Err()
	}
	l.log.Debug("browser started.", slog.Bool("headless", l.cfg.Headless))

	return p, nil
}

type ChromePage struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	cfg         *config.ScraperConfig
	log         *slog.Logger
	url         string
	closed      bool
}

// run executes actions on the tab bounded by timeout and by ctx.
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.closed || p.tabCtx.Err() != nil {
		return ErrClosed
	}
	opCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil {
		if p.tabCtx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.cfg.PageTimeout, navigateAndWaitFor(url, "networkIdle")); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	p.url = url
	return nil
}

func (p *ChromePage) Count(ctx context.Context, sel Selector) (int, error) {
	var n int
	script := fmt.Sprintf(`(() => { %s return __find(%d, %s).length; })()`,
		findElementsJS, sel.Strategy, jsString(sel.Expr))
	if err := p.run(ctx, p.cfg.PageTimeout, chromedp.Evaluate(script, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *ChromePage) Text(ctx context.Context, sel Selector) (string, error) {
	var res struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	script := fmt.Sprintf(`(() => {
		%s
		const el = __find(%d, %s)[0];
		return el ? {found: true, text: __text(el).trim()} : {found: false, text: ''};
	})()`, findElementsJS, sel.Strategy, jsString(sel.Expr))
	if err := p.run(ctx, p.cfg.PageTimeout, chromedp.Evaluate(script, &res)); err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Text, nil
}

func (p *ChromePage) Cards(ctx context.Context, sel Selector) ([]Card, error) {
	var cards []Card
	script := fmt.Sprintf(`(() => {
		%s
		return __find(%d, %s).map(el => {
			const a = (el.matches && el.matches('a[href]')) ? el : (el.querySelector ? el.querySelector('a[href]') : null);
			return {text: __text(el), href: a ? (a.getAttribute('href') || '') : '', hasAnchor: !!a};
		});
	})()`, findElementsJS, sel.Strategy, jsString(sel.Expr))
	if err := p.run(ctx, p.cfg.PageTimeout, chromedp.Evaluate(script, &cards)); err != nil {
		return nil, err
	}
	return cards, nil
}

func (p *ChromePage) TableRows(ctx context.Context) ([][]string, error) {
	var rows [][]string
	script := `(() => Array.from(document.querySelectorAll('table tr')).map(tr =>
		Array.from(tr.cells).map(c => ((c.innerText || c.textContent || '') + '').trim())))()`
	if err := p.run(ctx, p.cfg.PageTimeout, chromedp.Evaluate(script, &rows)); err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *ChromePage) Search(ctx context.Context, sel Selector, keyword string) error {
	var opt chromedp.QueryOption = chromedp.ByQuery
	if sel.Strategy == ByXPath {
		opt = chromedp.BySearch
	}
	var visible bool
	script := fmt.Sprintf(`(() => {
		%s
		const el = __find(%d, %s)[0];
		if (!el) return false;
		const style = getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && el.getClientRects().length > 0;
	})()`, findElementsJS, sel.Strategy, jsString(sel.Expr))
	if err := p.run(ctx, p.cfg.PageTimeout, chromedp.WaitReady(sel.Expr, opt), chromedp.Evaluate(script, &visible)); err != nil {
		return fmt.Errorf("search %q: %w", keyword, err)
	}
	if !visible {
		return fmt.Errorf("search input %s is hidden: %w", sel, ErrNotFound)
	}

	actions := []chromedp.Action{
		chromedp.Clear(sel.Expr, opt),
		chromedp.Focus(sel.Expr, opt),
	}
	timeout := p.cfg.PageTimeout
	if p.cfg.TypingDelay > 0 {
		// Slow typing keeps client-side autocomplete from dropping characters.
		for _, r := range keyword {
			actions = append(actions, chromedp.SendKeys(sel.Expr, string(r), opt), chromedp.Sleep(p.cfg.TypingDelay))
			timeout += p.cfg.TypingDelay
		}
	} else {
		actions = append(actions, chromedp.SendKeys(sel.Expr, keyword, opt))
	}
	actions = append(actions, chromedp.SendKeys(sel.Expr, kb.Enter, opt))

	if err := p.run(ctx, timeout, actions...); err != nil {
		return fmt.Errorf("search %q: %w", keyword, err)
	}
	return nil
}

func (p *ChromePage) URL() string {
	return p.url
}

// Close shuts the browser down. It is safe to call more than once.
func (p *ChromePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	err := chromedp.Cancel(p.tabCtx)
	p.tabCancel()
	p.allocCancel()
	if err != nil && p.tabCtx.Err() == nil {
		return err
	}
	return nil
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

// navigateAndWaitFor navigates and blocks until the lifecycle event eventName fires for the new document.
func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		events := make(chan *page.EventLifecycleEvent, 16)
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == eventName {
				select {
				case events <- e:
				default:
				}
			}
		})

		_, loaderID, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigation failed: %s", errorText)
		}
		for {
			select {
			case e := <-events:
				if loaderID == "" || e.LoaderID == loaderID {
					return nil
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func jsString(s string) string {
	b, _ := jsoniter.Marshal(s)
	return string(b)
}
