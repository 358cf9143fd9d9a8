package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jmylchreest/pageshot/internal/logger"
)

// Default timings and limits.
const (
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultViewportHeight = 1080
	DefaultConsentDelay   = 3 * time.Second
	DefaultDismissDelay   = 1 * time.Second
	DefaultScrollPause    = 500 * time.Millisecond
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Capturer.
type Options struct {
	MaxRetries     int           // recoveries allowed per request
	RetryDelay     time.Duration // pause between attempts
	ViewportHeight int           // scroll step; must match the session viewport
	ConsentDelay   time.Duration // wait after navigation for banners to render
	DismissDelay   time.Duration // wait after the consent click
	ScrollPause    time.Duration // wait after each scroll
	MaxSegments    int           // 0 = unlimited

	Logger *slog.Logger
	Sleep  SleepFunc
	NewID  func() string
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		ViewportHeight: DefaultViewportHeight,
		ConsentDelay:   DefaultConsentDelay,
		DismissDelay:   DefaultDismissDelay,
		ScrollPause:    DefaultScrollPause,
	}
}

// Capturer orchestrates provisioning, page preparation and the scroll
// loop for one URL at a time. It is safe for concurrent use; every call
// owns its own session.
type Capturer struct {
	provisioner Provisioner
	store       Store
	opts        Options
	log         *slog.Logger
}

// New creates a Capturer.
func New(p Provisioner, s Store, opts Options) *Capturer {
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.Component("capture")
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Capturer{
		provisioner: p,
		store:       s,
		opts:        opts,
		log:         opts.Logger,
	}
}

// Capture captures rawURL using the configured retry bound.
func (c *Capturer) Capture(ctx context.Context, rawURL string) (*Result, error) {
	return c.CaptureWithRetry(ctx, rawURL, c.opts.MaxRetries)
}

// CaptureWithRetry captures rawURL, allowing up to maxRetries recoveries
// (maxRetries+1 attempts). Timeouts retry on the same session; session
// failures retry on a new one; every other failure is returned at once.
// After the last attempt the last error is returned with its kind intact.
func (c *Capturer) CaptureWithRetry(ctx context.Context, rawURL string, maxRetries int) (*Result, error) {
	started := time.Now()

	target, err := NormalizeURL(rawURL)
	if err != nil {
		c.log.Warn("rejected URL", "url", rawURL, "error", err)
		return nil, err
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	id := c.opts.NewID()
	log := c.log.With("capture_id", id, "url", target)
	req := Request{URL: target}

	var (
		sess     Session
		sessions int
		attempts int
	)
	defer func() {
		if sess != nil {
			c.release(log, sess)
		}
	}()

	for {
		if sess == nil {
			s, err := c.provisioner.Acquire(ctx)
			if err != nil {
				if KindOf(err) != KindProvisioning {
					err = NewError(KindProvisioning, "acquire", target, err)
				}
				log.Error("browser unavailable", "error", err)
				return nil, err
			}
			sess = s
			sessions++
			log.Debug("session acquired", "sessions", sessions)
		}

		attempts++
		log.Info("capture attempt", "attempt", attempts, "retry", req.Retry)

		artifacts, err := c.attempt(ctx, sess, req)
		if err == nil {
			res := &Result{
				ID:           id,
				RequestedURL: rawURL,
				URL:          target,
				Artifacts:    artifacts,
				Attempts:     attempts,
				Sessions:     sessions,
				StartedAt:    started,
				Duration:     time.Since(started),
			}
			c.pruneStale(log, target, len(artifacts))
			log.Info("capture complete",
				"segments", len(artifacts),
				"size", humanize.Bytes(uint64(totalBytes(artifacts))),
				"attempts", attempts,
				"duration", res.Duration.Round(time.Millisecond))
			return res, nil
		}

		kind := KindOf(err)
		action := recoveryFor(kind)
		if action == recoverNone {
			log.Error("capture failed", "kind", kind, "error", err)
			return nil, err
		}

		req.Retry++
		if req.Retry > maxRetries {
			log.Error("retries exhausted", "kind", kind, "attempts", attempts, "error", err)
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		log.Warn("attempt failed",
			"attempt", attempts,
			"kind", kind,
			"recovery", action,
			"retry", req.Retry,
			"max_retries", maxRetries,
			"error", err)

		if action == recoverRecreate {
			c.release(log, sess)
			sess = nil
		}

		if err := c.pause(ctx, "retry", c.opts.RetryDelay); err != nil {
			return nil, err
		}
	}
}

func (c *Capturer) attempt(ctx context.Context, sess Session, req Request) ([]Artifact, error) {
	if err := c.Prepare(ctx, sess, req.URL); err != nil {
		return nil, err
	}
	return c.CaptureAll(ctx, sess, req.URL)
}

// release closes sess, ignoring errors.
func (c *Capturer) release(log *slog.Logger, sess Session) {
	if err := sess.Close(); err != nil {
		log.Debug("session close failed", "error", err)
	}
}

// pause sleeps through the injected SleepFunc. A cancelled context ends
// the capture.
func (c *Capturer) pause(ctx context.Context, op string, d time.Duration) error {
	if err := c.opts.Sleep(ctx, d); err != nil {
		return NewError(KindOther, op, "", fmt.Errorf("aborted: %w", err))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func totalBytes(artifacts []Artifact) int {
	n := 0
	for _, a := range artifacts {
		n += a.Bytes
	}
	return n
}

// pruneStale drops segments beyond keep when the store supports it. A
// failure leaves old files behind but does not fail the capture.
func (c *Capturer) pruneStale(log *slog.Logger, url string, keep int) {
	p, ok := c.store.(SegmentPruner)
	if !ok {
		return
	}
	n, err := p.PruneSegments(url, keep)
	if err != nil {
		log.Warn("stale segment cleanup failed", "error", err)
		return
	}
	if n > 0 {
		log.Debug("stale segments removed", "count", n)
	}
}
