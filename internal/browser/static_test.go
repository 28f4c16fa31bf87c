package browser

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const searchPage = `<html><body>
<form action="/search" method="get">
  <input type="hidden" name="lang" value="th">
  <input id="search" name="q" placeholder="ค้นหา มหาวิทยาลัย คณะ หลักสูตร">
</form>
</body></html>`

const resultsPage = `<html><body>
<ul class="t-programs">
  <li><a href="/programs/1"><h3>Computer Engineering</h3><span>Faculty of
      Engineering</span><div>Chulalongkorn University</div></a></li>
  <li><div><h3>No Link</h3></div></li>
  <li><div><h3>Nested</h3><a href="https://other.example/p/3">open</a></div></li>
</ul>
<table>
  <tr><th>ประเภทหลักสูตร</th><td>ภาษาไทย ปกติ</td></tr>
  <tr><td>ค่าใช้จ่าย</td><td> 21,000 <b>บาท</b> </td></tr>
</table>
<script>var x = "ignored";</script>
</body></html>`

func testScraperConfig() *config.ScraperConfig {
	return &config.ScraperConfig{
		PageTimeout: 2 * time.Second,
		UserAgent:   "program-scraper-test",
	}
}

func newPortal(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, searchPage)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "engineering" || r.URL.Query().Get("lang") != "th" {
			_, _ = io.WriteString(w, `<html><body><p>nothing</p></body></html>`)
			return
		}
		_, _ = io.WriteString(w, resultsPage)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func openStatic(t *testing.T) Page {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewStaticLauncher(testScraperConfig(), log).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in   string
		want Selector
	}{
		{in: "#search", want: CSS("#search")},
		{in: "  input[type=search] ", want: CSS("input[type=search]")},
		{in: "xpath://dt[1]", want: XPath("//dt[1]")},
		{in: "xpath: //dd", want: XPath("//dd")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseSelector(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []Selector{CSS("a"), XPath("//b")}, ParseSelectors([]string{"a", " ", "xpath://b"}))
	assert.Equal(t, "xpath://b", XPath("//b").String())
}

func TestStaticPageSearchAndCards(t *testing.T) {
	srv := newPortal(t)
	p := openStatic(t)
	ctx := context.Background()

	require.NoError(t, p.Navigate(ctx, srv.URL))
	n, err := p.Count(ctx, CSS(`input[placeholder*="ค้นหา"]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, p.Search(ctx, CSS("#search"), "engineering"))
	assert.True(t, strings.HasPrefix(p.URL(), srv.URL+"/search?"))

	cards, err := p.Cards(ctx, CSS("ul.t-programs > li"))
	require.NoError(t, err)
	require.Len(t, cards, 3)

	assert.Equal(t, "Computer Engineering\nFaculty of Engineering\nChulalongkorn University", cards[0].Text)
	assert.Equal(t, "/programs/1", cards[0].Href)
	assert.True(t, cards[0].HasAnchor)

	assert.False(t, cards[1].HasAnchor)
	assert.Empty(t, cards[1].Href)

	assert.Equal(t, "https://other.example/p/3", cards[2].Href)
	assert.Equal(t, "Nested\nopen", cards[2].Text)
}

func TestStaticPageText(t *testing.T) {
	srv := newPortal(t)
	p := openStatic(t)
	ctx := context.Background()
	require.NoError(t, p.Navigate(ctx, srv.URL+"/search?q=engineering&lang=th"))

	text, err := p.Text(ctx, XPath(`//th[contains(normalize-space(.), "ประเภทหลักสูตร")]/following-sibling::*[1]`))
	require.NoError(t, err)
	assert.Equal(t, "ภาษาไทย ปกติ", text)

	text, err = p.Text(ctx, CSS("table tr:nth-child(2) td:nth-child(2)"))
	require.NoError(t, err)
	assert.Equal(t, "21,000 บาท", text)

	_, err = p.Text(ctx, CSS(".missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.Text(ctx, XPath("//*[unclosed"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = p.Text(ctx, CSS("a[[["))
	assert.Error(t, err)
}

func TestStaticPageTableRows(t *testing.T) {
	srv := newPortal(t)
	p := openStatic(t)
	ctx := context.Background()
	require.NoError(t, p.Navigate(ctx, srv.URL+"/search?q=engineering&lang=th"))

	rows, err := p.TableRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ประเภทหลักสูตร", "ภาษาไทย ปกติ"},
		{"ค่าใช้จ่าย", "21,000 บาท"},
	}, rows)
}

func TestStaticPageNavigateErrors(t *testing.T) {
	srv := newPortal(t)
	p := openStatic(t)

	err := p.Navigate(context.Background(), srv.URL+"/broken")
	assert.Error(t, err)

	_, err = p.Text(context.Background(), CSS("body"))
	assert.Error(t, err, "no document is loaded after a failed first navigation")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Navigate(ctx, srv.URL), context.Canceled)
}

func TestInnerText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<div>
		<p>First   line</p>text<b>bold</b> tail<br>after break
		<ul><li>one</li><li>two</li></ul>
		<style>.x{}</style>
	</div>`))
	require.NoError(t, err)

	assert.Equal(t, "First line\ntextbold tail\nafter break\none\ntwo", innerText(doc))
}
