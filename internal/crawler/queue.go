// Package crawler discovers pages from seed URLs and captures each one.
package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// URLQueue is a FIFO of pages to capture. A URL is accepted at most once
// for the lifetime of the queue.
type URLQueue struct {
	mu    sync.Mutex
	items []entry
	seen  map[string]struct{}
}

type entry struct {
	url   string
	depth int
}

// NewURLQueue creates an empty queue.
func NewURLQueue() *URLQueue {
	return &URLQueue{seen: make(map[string]struct{})}
}

// Add enqueues rawURL at depth. It returns false when the URL cannot be
// parsed or was already seen.
func (q *URLQueue) Add(rawURL string, depth int) bool {
	key := canonical(rawURL)
	if key == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.seen[key]; ok {
		return false
	}
	q.seen[key] = struct{}{}
	q.items = append(q.items, entry{url: key, depth: depth})
	return true
}

// Pop removes the oldest entry.
func (q *URLQueue) Pop() (string, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", 0, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e.url, e.depth, true
}

func (q *URLQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Seen reports whether rawURL was ever added.
func (q *URLQueue) Seen(rawURL string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[canonical(rawURL)]
	return ok
}

// canonical drops the fragment, lower-cases the host and strips a
// trailing slash from non-root paths. It returns "" for anything that is
// not an absolute http(s) URL.
func canonical(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String()
}

// SameSite reports whether a and b share a host, ignoring a leading
// "www.".
func SameSite(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return bareHost(ua) == bareHost(ub) && bareHost(ua) != ""
}

func bareHost(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
