package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

type fakeCapturer struct {
	mu    sync.Mutex
	urls  []string
	fail  map[string]error
	block chan struct{}
}

func (f *fakeCapturer) Capture(ctx context.Context, rawURL string) (*capture.Result, error) {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[rawURL]; err != nil {
		return nil, err
	}
	return &capture.Result{
		URL:       rawURL,
		Artifacts: []capture.Artifact{{Path: "/assets/x_0.png"}},
		Attempts:  1,
		Sessions:  1,
	}, nil
}

func (f *fakeCapturer) captured() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.urls)
	sort.Strings(out)
	return out
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pageURL)
	html, ok := f.pages[pageURL]
	if !ok {
		return "", fmt.Errorf("no page %s", pageURL)
	}
	return html, nil
}

func links(hrefs ...string) string {
	html := "<html><body>"
	for _, h := range hrefs {
		html += fmt.Sprintf(`<a href="%s">x</a>`, h)
	}
	return html + "</body></html>"
}

// site is a small tree: root -> a, b (+ offsite); a -> a1, root; b -> b1.
func site() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{
		"https://example.com/":    links("/a", "/b", "https://other.com/x"),
		"https://example.com/a":   links("/a/1", "/"),
		"https://example.com/b":   links("/b/1"),
		"https://example.com/a/1": links(),
		"https://example.com/b/1": links(),
	}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Delay = 0
	cfg.Concurrency = 3
	cfg.Logger = logger.Discard()
	return cfg
}

func collect(ch <-chan Result) []Result {
	var out []Result
	for r := range ch {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func TestCrawler_SeedsOnly(t *testing.T) {
	capt := &fakeCapturer{}
	fetch := site()
	c := New(capt, fetch, testConfig())

	results := collect(c.Crawl(context.Background(), []string{"https://example.com/", "example.org"}))

	want := []string{"http://example.org", "https://example.com/"}
	if got := capt.captured(); !slices.Equal(got, want) {
		t.Errorf("captured %v, want %v", got, want)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if len(fetch.calls) != 0 {
		t.Errorf("no link following configured, but fetched %v", fetch.calls)
	}
}

func TestCrawler_FollowDepth(t *testing.T) {
	tests := []struct {
		name     string
		maxDepth int
		want     []string
	}{
		{"depth 0", 0, []string{"https://example.com/"}},
		{"depth 1", 1, []string{"https://example.com/", "https://example.com/a", "https://example.com/b"}},
		{"depth 2", 2, []string{
			"https://example.com/", "https://example.com/a", "https://example.com/a/1",
			"https://example.com/b", "https://example.com/b/1",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capt := &fakeCapturer{}
			cfg := testConfig()
			cfg.FollowSelector = "a"
			cfg.MaxDepth = tt.maxDepth
			c := New(capt, site(), cfg)

			results := collect(c.Crawl(context.Background(), []string{"https://example.com/"}))

			if got := capt.captured(); !slices.Equal(got, tt.want) {
				t.Errorf("captured %v, want %v", got, tt.want)
			}
			for _, r := range results {
				if r.Error != nil {
					t.Errorf("%s: unexpected error %v", r.URL, r.Error)
				}
			}
		})
	}
}

func TestCrawler_CrossSiteLinks(t *testing.T) {
	capt := &fakeCapturer{}
	cfg := testConfig()
	cfg.FollowSelector = "a"
	cfg.SameSiteOnly = false
	cfg.MaxDepth = 1
	fetch := site()
	c := New(capt, fetch, cfg)

	collect(c.Crawl(context.Background(), []string{"https://example.com/"}))

	if !slices.Contains(capt.captured(), "https://other.com/x") {
		t.Errorf("captured %v, want the off-site link too", capt.captured())
	}
}

func TestCrawler_FollowPattern(t *testing.T) {
	capt := &fakeCapturer{}
	cfg := testConfig()
	cfg.FollowPattern = `/b$`
	cfg.MaxDepth = 2
	c := New(capt, site(), cfg)

	collect(c.Crawl(context.Background(), []string{"https://example.com/"}))

	want := []string{"https://example.com/", "https://example.com/b"}
	if got := capt.captured(); !slices.Equal(got, want) {
		t.Errorf("captured %v, want %v", got, want)
	}
}

func TestCrawler_MaxURLs(t *testing.T) {
	capt := &fakeCapturer{}
	cfg := testConfig()
	cfg.FollowSelector = "a"
	cfg.MaxDepth = 2
	cfg.MaxURLs = 2
	c := New(capt, site(), cfg)

	results := collect(c.Crawl(context.Background(), []string{"https://example.com/"}))

	if len(results) != 2 || len(capt.captured()) != 2 {
		t.Errorf("results = %d, captured = %v; want 2 each", len(results), capt.captured())
	}
}

func TestCrawler_Pagination(t *testing.T) {
	fetch := &fakeFetcher{pages: map[string]string{
		"https://example.com/list":     `<a class="next" href="/list?p=2">next</a>`,
		"https://example.com/list?p=2": `<a class="next" href="/list?p=3">next</a>`,
		"https://example.com/list?p=3": `<p>end</p>`,
	}}

	tests := []struct {
		name     string
		maxPages int
		want     int
	}{
		{"unlimited", 0, 3},
		{"limited", 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capt := &fakeCapturer{}
			cfg := testConfig()
			cfg.Concurrency = 1
			cfg.NextSelector = "a.next"
			cfg.MaxPages = tt.maxPages
			c := New(capt, fetch, cfg)

			collect(c.Crawl(context.Background(), []string{"https://example.com/list"}))

			if got := len(capt.captured()); got != tt.want {
				t.Errorf("captured %v, want %d pages", capt.captured(), tt.want)
			}
		})
	}
}

func TestCrawler_CaptureFailureStillFollows(t *testing.T) {
	boom := capture.NewError(capture.KindSession, "screenshot", "https://example.com/", errors.New("crashed"))
	capt := &fakeCapturer{fail: map[string]error{"https://example.com/": boom}}
	cfg := testConfig()
	cfg.FollowSelector = "a"
	c := New(capt, site(), cfg)

	results := collect(c.Crawl(context.Background(), []string{"https://example.com/"}))

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	root := results[0]
	if root.URL != "https://example.com/" || !errors.Is(root.Error, boom) {
		t.Errorf("root result = %+v", root)
	}
	if root.Links != 2 {
		t.Errorf("root Links = %d, want 2", root.Links)
	}
}

func TestCrawler_FetchFailureIsNotFatal(t *testing.T) {
	capt := &fakeCapturer{}
	cfg := testConfig()
	cfg.FollowSelector = "a"
	c := New(capt, &fakeFetcher{}, cfg)

	results := collect(c.Crawl(context.Background(), []string{"https://example.com/"}))

	if len(results) != 1 || results[0].Error != nil {
		t.Errorf("results = %+v", results)
	}
}

func TestCrawler_InvalidSeeds(t *testing.T) {
	capt := &fakeCapturer{}
	c := New(capt, nil, testConfig())

	results := collect(c.Crawl(context.Background(), []string{"", "ftp://example.com/f", "https://example.com/"}))

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	invalid := 0
	for _, r := range results {
		if r.Error != nil {
			if capture.KindOf(r.Error) != capture.KindValidation {
				t.Errorf("%q: kind = %v, want validation", r.URL, capture.KindOf(r.Error))
			}
			invalid++
		}
	}
	if invalid != 2 {
		t.Errorf("invalid results = %d, want 2", invalid)
	}
	if got := capt.captured(); len(got) != 1 {
		t.Errorf("captured %v, want only the valid seed", got)
	}
}

func TestCrawler_InvalidPattern(t *testing.T) {
	cfg := testConfig()
	cfg.FollowPattern = "[bad"
	capt := &fakeCapturer{}
	c := New(capt, site(), cfg)

	results := collect(c.Crawl(context.Background(), []string{"https://example.com/"}))

	if len(results) != 1 || capture.KindOf(results[0].Error) != capture.KindValidation {
		t.Errorf("results = %+v", results)
	}
	if len(capt.captured()) != 0 {
		t.Error("nothing should be captured with an invalid pattern")
	}
}

func TestCrawler_Cancel(t *testing.T) {
	capt := &fakeCapturer{block: make(chan struct{})}
	cfg := testConfig()
	cfg.FollowSelector = "a"
	c := New(capt, site(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Crawl(ctx, []string{"https://example.com/"})
	cancel()

	done := make(chan struct{})
	go func() {
		collect(ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not stop after cancel")
	}
}

func TestConfig_Following(t *testing.T) {
	if (Config{}).Following() {
		t.Error("empty config should not follow")
	}
	if !(Config{NextSelector: "a.next"}).Following() {
		t.Error("pagination should count as following")
	}
}
