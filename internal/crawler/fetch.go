package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Fetcher returns the raw HTML of a page for link discovery.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// StaticFetcher downloads pages over plain HTTP with colly. Scripts are
// not executed, so links added client-side are not discovered.
type StaticFetcher struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
}

// DefaultUserAgent is sent when StaticFetcher.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// NewStaticFetcher returns a fetcher with a 30s timeout and a 10 MiB
// body limit.
func NewStaticFetcher(userAgent string) *StaticFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &StaticFetcher{
		UserAgent:   userAgent,
		Timeout:     30 * time.Second,
		MaxBodySize: 10 << 20,
	}
}

// Fetch returns the body of pageURL. Non-HTML responses yield an empty
// string.
func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.StdlibContext(ctx),
	)
	if f.Timeout > 0 {
		c.SetRequestTimeout(f.Timeout)
	}

	var (
		body     string
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		if strings.Contains(r.Headers.Get("Content-Type"), "html") {
			body = string(r.Body)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("fetch %s: status %d: %w", pageURL, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", pageURL, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	return body, nil
}
