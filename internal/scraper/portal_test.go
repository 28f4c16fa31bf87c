package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/browser"
	"github.com/IliaW/program-scraper/internal/cache"
	"github.com/IliaW/program-scraper/internal/extract"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const portalHome = `<html><body>
<form action="/search" method="get">
  <input id="search" name="q" placeholder="ค้นหา มหาวิทยาลัย คณะ หลักสูตร">
</form>
</body></html>`

const engineeringResults = `<html><body>
<ul class="t-programs">
  <li><a href="/programs/1"><h3>Computer Engineering</h3><div>Faculty of Engineering</div><div>Chulalongkorn University</div></a></li>
  <li><div><h3>Civil Engineering</h3><div>Faculty of Engineering</div></div></li>
  <li><a href="https://other.example/programs/9"><h3>Robotics</h3><div>Institute of Field Robotics</div></a></li>
</ul>
</body></html>`

var detailPages = map[string]string{
	"1": `<html><body><h2>Computer Engineering</h2>
<dl><dt>ประเภทหลักสูตร</dt><dd>ภาษาไทย ปกติ</dd><dt>ค่าใช้จ่าย</dt><dd>21,000 บาท/ภาคการศึกษา</dd></dl>
</body></html>`,
	"2": `<html><body><h2>Data Science</h2>
<table><tr><td>Program Type</td><td>International</td></tr><tr><td>Tuition fee</td><td>90,000 THB</td></tr></table>
</body></html>`,
	"4": `<html><body><h2>Bare</h2><p>no details published</p></body></html>`,
	"5": `<html><body><div class="program-type">สองภาษา</div><div data-field="tuition-fee">45,000</div></body></html>`,
	"6": `<html><body><nav><button data-type="primary">Apply now</button><span class="type">News</span></nav>
<table><tr><td>Program Type</td><td>International</td></tr><tr><td>Tuition</td><td>90,000</td></tr></table>
</body></html>`,
	"7": `<html><body><table>
<tr><td>Fee type</td><td>per semester</td></tr>
<tr><td>Program Type</td><td>International</td></tr>
<tr><td>Tuition</td><td>90,000</td></tr>
</table></body></html>`,
	"8": `<html><body><dl><dt>ค่าใช้จ่าย</dt><dd>21,000</dd></dl>
<table><tr><td>Tuition</td><td>99,999</td></tr><tr><td>Program type</td><td>Regular</td></tr></table>
</body></html>`,
	"9": `<html><body><table>
<tr><td>Type</td><td>Full-time</td></tr>
<tr><td>Cost</td><td>see brochure</td></tr>
<tr><td>ประเภทหลักสูตร</td><td>ภาษาไทย ปกติ</td></tr>
</table></body></html>`,
}

// portal serves a small admissions site. Detail page 3 never answers within the test page timeout.
type portal struct {
	srv         *httptest.Server
	detailHits  map[string]*atomic.Int32
	slowRelease chan struct{}
}

func newTestPortal(t *testing.T) *portal {
	t.Helper()
	p := &portal{detailHits: map[string]*atomic.Int32{}, slowRelease: make(chan struct{})}
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		p.detailHits[id] = new(atomic.Int32)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, portalHome)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "engineering":
			_, _ = io.WriteString(w, engineeringResults)
		case "five":
			var sb strings.Builder
			sb.WriteString(`<html><body>`)
			for i := 1; i <= 5; i++ {
				fmt.Fprintf(&sb, `<div data-cy="program-card"><a href="programs/%d">Program %d<br>Faculty %d<br>University %d</a></div>`,
					i, i, i, i)
			}
			sb.WriteString(`</body></html>`)
			_, _ = io.WriteString(w, sb.String())
		default:
			_, _ = io.WriteString(w, `<html><body><p>ไม่พบข้อมูล</p></body></html>`)
		}
	})
	mux.HandleFunc("/programs/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/programs/")
		if hits, ok := p.detailHits[id]; ok {
			hits.Add(1)
		}
		if id == "3" {
			select {
			case <-r.Context().Done():
			case <-p.slowRelease:
			}
			return
		}
		body, ok := detailPages[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/no-search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body><p>maintenance</p></body></html>`)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		close(p.slowRelease)
		p.srv.Close()
	})
	return p
}

func (p *portal) url(path string) string {
	return p.srv.URL + path
}

func testConfig(baseURL string) *config.ScraperConfig {
	return &config.ScraperConfig{
		BaseURL:         baseURL,
		PageTimeout:     300 * time.Millisecond,
		SelectorTimeout: 100 * time.Millisecond,
		LocatorTimeout:  time.Second,
		PollInterval:    10 * time.Millisecond,
		UserAgent:       "program-scraper-test",
	}
}

func openPage(t *testing.T, cfg *config.ScraperConfig) browser.Page {
	t.Helper()
	page, err := browser.NewStaticLauncher(cfg, discard).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })
	return page
}

func newTestFetcher(cfg *config.ScraperConfig, c cache.DetailCache) *DetailFetcher {
	return NewDetailFetcher(DefaultSelectors(nil), extract.NewExtractor(cfg.LocatorTimeout, discard), c, discard)
}
