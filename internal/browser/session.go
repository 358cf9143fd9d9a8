package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/pageshot/pkg/capture"
)

// Session is a chromedp-backed capture.Session: one Chrome process with
// one tab.
type Session struct {
	ctx         context.Context // tab context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	log         *slog.Logger

	closeOnce sync.Once
}

var _ capture.Session = (*Session)(nil)

// launchChrome starts a browser with execPath ("" for chromedp's own
// lookup) and applies the viewport and stealth setup.
func launchChrome(ctx context.Context, cfg Config, execPath string) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg, execPath)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			cfg.Logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	s := &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     cfg.PageLoadTimeout,
		log:         cfg.Logger,
	}

	// The first Run starts the process and must use the tab context itself;
	// the caller's ctx only aborts the launch.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight), 1, false),
	}
	if cfg.Stealth {
		actions = append(actions, injectStealth())
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return s, nil
}

// run executes actions on the tab, aborting when ctx is done. Cancelling
// the derived context does not close the tab.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// classify tags a chromedp error. Caller cancellation is KindOther,
// everything else means the browser is no longer usable.
func (s *Session) classify(ctx context.Context, op, url string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return capture.NewError(capture.KindOther, op, url, fmt.Errorf("aborted: %w", ctx.Err()))
	}
	return capture.NewError(capture.KindSession, op, url, fmt.Errorf("%w: %w", capture.ErrSessionLost, err))
}

// Navigate loads url, bounded by the page-load timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	if err == nil {
		s.log.Debug("page loaded", "url", url, "elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	}
	if ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return capture.NewError(capture.KindTimeout, "navigate", url,
			fmt.Errorf("%w after %s", capture.ErrPageLoadTimeout, s.timeout))
	}
	return s.classify(ctx, "navigate", url, err)
}

// HTML returns the document's outer HTML.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, s.classify(ctx, "html", "", err)
}

// Click clicks the first visible node matching xpath.
func (s *Session) Click(ctx context.Context, xpath string) (bool, error) {
	var clicked bool
	err := s.run(ctx, chromedp.Evaluate(clickScript(xpath), &clicked))
	if err != nil {
		return false, s.classify(ctx, "click", "", err)
	}
	return clicked, nil
}

// InjectStyle appends css as a <style> element.
func (s *Session) InjectStyle(ctx context.Context, css string) error {
	err := s.run(ctx, chromedp.Evaluate(styleScript(css), nil))
	return s.classify(ctx, "inject style", "", err)
}

// Height returns the document body's scroll height.
func (s *Session) Height(ctx context.Context) (int, error) {
	var h int
	err := s.run(ctx, chromedp.Evaluate(heightScript, &h))
	if err != nil {
		return 0, s.classify(ctx, "height", "", err)
	}
	return h, nil
}

// ScrollTo scrolls the window to y.
func (s *Session) ScrollTo(ctx context.Context, y int) error {
	err := s.run(ctx, chromedp.Evaluate(scrollScript(y), nil))
	return s.classify(ctx, "scroll", "", err)
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, s.classify(ctx, "screenshot", "", err)
	}
	return buf, nil
}

// Close terminates the browser process.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
	})
	return nil
}

const heightScript = `(document.body ? document.body.scrollHeight : document.documentElement.scrollHeight)`

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// clickScript evaluates xpath and clicks the first rendered, visible
// match. It yields true when something was clicked.
func clickScript(xpath string) string {
	return fmt.Sprintf(`(function(xp) {
    const found = document.evaluate(xp, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    for (let i = 0; i < found.snapshotLength; i++) {
        const el = found.snapshotItem(i);
        const rect = el.getBoundingClientRect();
        const style = window.getComputedStyle(el);
        if (rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none') {
            el.click();
            return true;
        }
    }
    return false;
})(%s)`, jsString(xpath))
}

func styleScript(css string) string {
	return fmt.Sprintf(`(function(css) {
    const style = document.createElement('style');
    style.textContent = css;
    (document.head || document.documentElement).appendChild(style);
    return true;
})(%s)`, jsString(css))
}

func scrollScript(y int) string {
	return fmt.Sprintf("window.scrollTo(0, %d)", y)
}
