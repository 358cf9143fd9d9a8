// Package capture takes full-page screenshots of web pages.
//
// A Capturer drives one browser Session per request through navigation,
// cookie-consent dismissal and a scroll loop that saves one image per
// viewport height. Failures are classified by Kind; timeouts are retried
// on the same session, session failures on a fresh one.
package capture

import (
	"context"
	"time"
)

// Session is one live browser tab. Implementations report navigation
// timeouts as KindTimeout and protocol or browser failures as
// KindSession errors.
type Session interface {
	// Navigate loads url and waits for the load event, bounded by the
	// session's page-load timeout.
	Navigate(ctx context.Context, url string) error

	// HTML returns the current document's outer HTML.
	HTML(ctx context.Context) (string, error)

	// Click clicks the first visible node matching the XPath expression.
	// It reports false when nothing matched.
	Click(ctx context.Context, xpath string) (bool, error)

	// InjectStyle appends a <style> element with css to the document.
	InjectStyle(ctx context.Context, css string) error

	// Height returns the document's scrollable height in CSS pixels.
	Height(ctx context.Context) (int, error)

	// ScrollTo scrolls the window to vertical offset y.
	ScrollTo(ctx context.Context, y int) error

	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Provisioner creates sessions.
type Provisioner interface {
	Acquire(ctx context.Context) (Session, error)
}

// Store decides where segments go and persists them.
type Store interface {
	// SegmentPath returns the file path for segment index of url.
	SegmentPath(url string, index int) (string, error)

	// WriteFile persists data at path.
	WriteFile(path string, data []byte) error
}

// SegmentPruner is implemented by stores that can drop segments left over
// from an earlier, longer capture of the same URL.
type SegmentPruner interface {
	PruneSegments(url string, keep int) (int, error)
}

// Request is one capture request's mutable retry state.
type Request struct {
	URL   string // normalized target
	Retry int    // recoveries so far
}

// Artifact is one saved viewport segment.
type Artifact struct {
	Path   string `json:"path" yaml:"path"`
	Offset int    `json:"offset" yaml:"offset"`
	Index  int    `json:"index" yaml:"index"`
	Bytes  int    `json:"bytes" yaml:"bytes"`
}

// Result is a successful capture.
type Result struct {
	ID           string        `json:"id" yaml:"id"`
	RequestedURL string        `json:"requested_url" yaml:"requested_url"`
	URL          string        `json:"url" yaml:"url"`
	Artifacts    []Artifact    `json:"artifacts" yaml:"artifacts"`
	Attempts     int           `json:"attempts" yaml:"attempts"`
	Sessions     int           `json:"sessions" yaml:"sessions"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// Paths returns the artifact file paths in capture order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		paths[i] = a.Path
	}
	return paths
}
