package capture

import "context"

// quietStyle neutralizes pointer and hover/focus/active states so the
// screenshots do not depend on where the virtual mouse happens to be.
const quietStyle = `
* {
    pointer-events: none !important;
    user-select: none !important;
}
*:hover, *:focus, *:active {
    background-color: inherit !important;
    color: inherit !important;
    border-color: inherit !important;
    outline: none !important;
    box-shadow: none !important;
    transform: none !important;
    opacity: 1 !important;
}
`

// Prepare loads rawURL in sess, tries to dismiss a cookie banner and
// injects the quiet style. Only URL validation and navigation errors are
// returned; the rest is best-effort.
func (c *Capturer) Prepare(ctx context.Context, sess Session, rawURL string) error {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	log := c.log.With("url", target)

	log.Debug("navigating")
	if err := sess.Navigate(ctx, target); err != nil {
		return err
	}

	if err := c.pause(ctx, "consent settle", c.opts.ConsentDelay); err != nil {
		return err
	}

	if query, ok := c.dismissConsent(ctx, sess, log); ok {
		log.Info("cookie banner dismissed", "query", query)
	} else {
		log.Debug("no cookie banner dismissed")
	}

	if err := c.pause(ctx, "dismiss settle", c.opts.DismissDelay); err != nil {
		return err
	}

	if err := sess.InjectStyle(ctx, quietStyle); err != nil {
		log.Warn("style override failed", "error", err)
	}
	return nil
}
