// Package browser provisions headless Chrome sessions for capture.
//
// A Provisioner resolves a browser binary in a fixed order: the configured
// or platform well-known host browser (with a one-time permission repair),
// then chromedp's own lookup, then an optional managed download.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

// Config holds provisioning settings.
type Config struct {
	ExecPath        string        // explicit browser binary; "" = discover
	Managed         bool          // download a browser as last resort; on in DefaultConfig
	UserAgent       string        // "" = browser default
	Stealth         bool          // anti-automation flags and script
	ViewportWidth   int           // CSS pixels
	ViewportHeight  int           // CSS pixels; also the capture scroll step
	PageLoadTimeout time.Duration // applied to every navigation
	Logger          *slog.Logger
}

// DefaultConfig returns a 1920x1080 headless configuration that falls
// back to a downloaded browser.
func DefaultConfig() Config {
	return Config{
		Managed:         true,
		ViewportWidth:   1920,
		ViewportHeight:  1080,
		PageLoadTimeout: 30 * time.Second,
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = d.ViewportWidth
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = d.ViewportHeight
	}
	if c.PageLoadTimeout <= 0 {
		c.PageLoadTimeout = d.PageLoadTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.Component("browser")
	}
}

type (
	launchFunc   func(ctx context.Context, execPath string) (capture.Session, error)
	repairFunc   func(path string) error
	downloadFunc func() (string, error)
)

// Provisioner launches one browser per Acquire call.
type Provisioner struct {
	cfg Config
	log *slog.Logger

	launch   launchFunc
	repair   repairFunc
	download downloadFunc
	hostPath func() string
}

var _ capture.Provisioner = (*Provisioner)(nil)

// New creates a Provisioner.
func New(cfg Config) *Provisioner {
	cfg.defaults()
	p := &Provisioner{
		cfg:      cfg,
		log:      cfg.Logger,
		repair:   makeExecutable,
		download: downloadBrowser,
		hostPath: FindChromePath,
	}
	p.launch = func(ctx context.Context, execPath string) (capture.Session, error) {
		return launchChrome(ctx, p.cfg, execPath)
	}
	return p
}

// Config returns the effective configuration.
func (p *Provisioner) Config() Config {
	return p.cfg
}

// Acquire starts a new browser session. The caller must Close it.
func (p *Provisioner) Acquire(ctx context.Context) (capture.Session, error) {
	var errs []error

	host := p.cfg.ExecPath
	if host == "" {
		host = p.hostPath()
	}
	if host != "" {
		sess, err := p.launchWithRepair(ctx, host)
		if err == nil {
			return sess, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Warn("host browser unusable", "path", host, "error", err)
		errs = append(errs, fmt.Errorf("host browser %s: %w", host, err))
	}

	sess, err := p.launch(ctx, "")
	if err == nil {
		p.log.Debug("browser launched", "source", "default lookup")
		return sess, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.log.Debug("default browser lookup failed", "error", err)
	errs = append(errs, fmt.Errorf("default lookup: %w", err))

	if p.cfg.Managed {
		sess, err := p.launchManaged(ctx)
		if err == nil {
			return sess, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("managed browser: %w", err))
	}

	return nil, capture.NewError(capture.KindProvisioning, "acquire", "",
		fmt.Errorf("%w: %w", capture.ErrNoBrowser, errors.Join(errs...)))
}

// launchWithRepair launches path, and on failure makes it executable and
// tries exactly once more.
func (p *Provisioner) launchWithRepair(ctx context.Context, path string) (capture.Session, error) {
	sess, err := p.launch(ctx, path)
	if err == nil {
		p.log.Debug("browser launched", "source", "host", "path", path)
		return sess, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	p.log.Info("browser launch failed, repairing permissions", "path", path, "error", err)
	if rerr := p.repair(path); rerr != nil {
		p.log.Debug("permission repair failed", "path", path, "error", rerr)
		return nil, err
	}

	sess, err2 := p.launch(ctx, path)
	if err2 != nil {
		return nil, err2
	}
	p.log.Info("browser launched after permission repair", "path", path)
	return sess, nil
}

func (p *Provisioner) launchManaged(ctx context.Context) (capture.Session, error) {
	p.log.Info("fetching managed browser")
	bin, err := p.download()
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	sess, err := p.launch(ctx, bin)
	if err != nil {
		return nil, err
	}
	p.log.Info("browser launched", "source", "managed", "path", bin)
	return sess, nil
}

// makeExecutable adds execute permission for everyone (chmod a+x).
func makeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0o111)
}

// downloadBrowser fetches a pinned Chromium into rod's cache directory, or
// reuses an earlier download.
func downloadBrowser() (string, error) {
	return launcher.NewBrowser().Get()
}
