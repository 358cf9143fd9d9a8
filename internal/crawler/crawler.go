package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

// Capturer takes the screenshots for one page.
type Capturer interface {
	Capture(ctx context.Context, rawURL string) (*capture.Result, error)
}

// Result is the outcome for one crawled page.
type Result struct {
	URL      string
	Depth    int
	Capture  *capture.Result
	Error    error
	Links    int // links queued from this page
	Duration time.Duration
}

// Config holds crawler configuration.
type Config struct {
	// Link following
	FollowSelector string // CSS selector for links to follow
	FollowPattern  string // regexp the absolute link must match
	SameSiteOnly   bool
	MaxDepth       int // 0 captures the seeds only

	// Pagination
	NextSelector string // CSS selector for the "next page" link
	MaxPages     int    // depth-0 pages, 0 = unlimited

	MaxURLs     int // 0 = unlimited
	Delay       time.Duration
	Concurrency int

	Logger *slog.Logger
}

// DefaultConfig returns the crawler defaults.
func DefaultConfig() Config {
	return Config{
		SameSiteOnly: true,
		MaxDepth:     1,
		Delay:        200 * time.Millisecond,
		Concurrency:  2,
	}
}

// Following reports whether any link discovery is configured.
func (c Config) Following() bool {
	return c.FollowSelector != "" || c.FollowPattern != "" || c.NextSelector != ""
}

// Crawler walks from seed URLs and captures every page it reaches.
type Crawler struct {
	capturer Capturer
	fetcher  Fetcher
	config   Config
	log      *slog.Logger
}

// New creates a Crawler. fetcher may be nil when no link following is
// configured.
func New(c Capturer, f Fetcher, cfg Config) *Crawler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Component("crawler")
	}
	return &Crawler{capturer: c, fetcher: f, config: cfg, log: cfg.Logger}
}

// Crawl captures the seeds and everything reachable from them within the
// configured limits. The channel is closed once all work has finished.
func (c *Crawler) Crawl(ctx context.Context, seeds []string) <-chan Result {
	results := make(chan Result, c.config.Concurrency)
	go func() {
		defer close(results)
		c.crawl(ctx, seeds, results)
	}()
	return results
}

func (c *Crawler) crawl(ctx context.Context, seeds []string, results chan<- Result) {
	var links *LinkSelector
	if c.config.FollowSelector != "" || c.config.FollowPattern != "" {
		var err error
		links, err = NewLinkSelector(c.config.FollowSelector, c.config.FollowPattern)
		if err != nil {
			emit(ctx, results, Result{Error: capture.NewError(capture.KindValidation, "crawl", "", err)})
			return
		}
	}

	queue := NewURLQueue()
	for _, seed := range seeds {
		u, err := capture.NormalizeURL(seed)
		if err == nil && canonical(u) == "" {
			err = capture.NewError(capture.KindValidation, "crawl", seed,
				fmt.Errorf("%w: unsupported scheme", capture.ErrInvalidURL))
		}
		if err != nil {
			emit(ctx, results, Result{URL: seed, Error: err})
			continue
		}
		queue.Add(u, 0)
	}

	c.log.Debug("crawl starting",
		"seeds", queue.Len(),
		"max_depth", c.config.MaxDepth,
		"max_urls", c.config.MaxURLs,
		"concurrency", c.config.Concurrency)

	sem := make(chan struct{}, c.config.Concurrency)
	var wg sync.WaitGroup
	dispatched, pages := 0, 0

	for ctx.Err() == nil {
		if c.config.MaxURLs > 0 && dispatched >= c.config.MaxURLs {
			c.log.Debug("crawl reached url limit", "max_urls", c.config.MaxURLs)
			break
		}

		pageURL, depth, ok := queue.Pop()
		if !ok {
			// In-flight pages may still queue links.
			wg.Wait()
			if queue.Len() == 0 {
				break
			}
			continue
		}
		if depth == 0 && c.config.MaxPages > 0 && pages >= c.config.MaxPages {
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		wg.Add(1)
		dispatched++
		if depth == 0 {
			pages++
		}

		first := dispatched == 1
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if !first && c.config.Delay > 0 {
				t := time.NewTimer(c.config.Delay)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
			}
			emit(ctx, results, c.visit(ctx, pageURL, depth, links, queue))
		}()
	}
	wg.Wait()
}

func (c *Crawler) visit(ctx context.Context, pageURL string, depth int, links *LinkSelector, queue *URLQueue) Result {
	start := time.Now()
	log := c.log.With("url", pageURL, "depth", depth)

	res, err := c.capturer.Capture(ctx, pageURL)
	out := Result{URL: pageURL, Depth: depth, Capture: res, Error: err}
	if err != nil {
		log.Info("capture failed", "error", err)
	} else {
		log.Info("captured", "segments", len(res.Artifacts), "attempts", res.Attempts)
	}

	followLinks := links != nil && depth < c.config.MaxDepth
	followNext := c.config.NextSelector != "" && depth == 0
	if (followLinks || followNext) && c.fetcher != nil && ctx.Err() == nil {
		n, ferr := c.discover(ctx, pageURL, depth, links, followLinks, followNext, queue)
		if ferr != nil {
			log.Warn("link discovery failed", "error", ferr)
		}
		out.Links = n
	}

	out.Duration = time.Since(start)
	return out
}

// discover fetches pageURL statically and queues its links. Pagination
// links stay at depth 0.
func (c *Crawler) discover(ctx context.Context, pageURL string, depth int, links *LinkSelector, followLinks, followNext bool, queue *URLQueue) (int, error) {
	html, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	added := 0
	if followLinks {
		found, err := links.Links(html, pageURL)
		if err != nil {
			return 0, fmt.Errorf("parse links: %w", err)
		}
		for _, link := range found {
			if c.config.SameSiteOnly && !SameSite(pageURL, link) {
				continue
			}
			if queue.Add(link, depth+1) {
				added++
			}
		}
	}
	if followNext {
		if next, ok := NextPage(c.config.NextSelector, html, pageURL); ok && queue.Add(next, 0) {
			c.log.Debug("next page", "from", pageURL, "next", next)
			added++
		}
	}
	if added > 0 {
		c.log.Info("following links", "from", pageURL, "count", added)
	}
	return added, nil
}

func emit(ctx context.Context, results chan<- Result, r Result) {
	select {
	case results <- r:
	case <-ctx.Done():
	}
}
