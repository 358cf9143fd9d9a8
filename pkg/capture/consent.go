package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Phrases on "decline" buttons, most specific first.
var consentPhrases = []string{
	"Decline All",
	"Reject All",
	"Deny All",
	"Only Essential",
	"Decline",
	"Reject",
	"Deny",
	"Use necessary only",
	"Use essential only",
	"Refuse",
	"Disagree",
}

// Id substrings of common consent containers.
var consentContainers = []string{
	"cookie-consent",
	"cookieConsent",
	"cookie-banner",
	"cookieBanner",
	"gdpr-banner",
}

// consentXPaths is the ordered list of queries tried against the page.
var consentXPaths = buildConsentXPaths()

func buildConsentXPaths() []string {
	var queries []string

	// Button text: exact, then case-insensitive substring.
	for _, p := range consentPhrases {
		queries = append(queries,
			fmt.Sprintf("//button[normalize-space(text())='%s']", p),
			fmt.Sprintf("//button[contains(%s, '%s')]", xpathLower("text()"), strings.ToLower(p)),
		)
	}
	for _, p := range consentPhrases {
		queries = append(queries,
			fmt.Sprintf("//button[contains(%s, '%s')]", xpathLower("@aria-label"), strings.ToLower(p)))
	}
	for _, p := range consentPhrases {
		queries = append(queries,
			fmt.Sprintf("//input[(%s='%s') and (@type='button' or @type='submit')]", xpathLower("@value"), strings.ToLower(p)))
	}
	for _, id := range consentContainers {
		queries = append(queries, fmt.Sprintf("//*[contains(@id, '%s')]//button", id))
	}

	return queries
}

// xpathLower lowercases an XPath 1.0 expression (ASCII only).
func xpathLower(expr string) string {
	return fmt.Sprintf("translate(%s, 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz')", expr)
}

// hasConsentCandidate reports whether html contains anything the consent
// queries could match. It over-approximates: a false result means no
// query can succeed.
func hasConsentCandidate(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return true
	}

	found := false
	doc.Find("button, input").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(s.Text())
		aria := strings.ToLower(s.AttrOr("aria-label", ""))
		value := strings.ToLower(s.AttrOr("value", ""))
		for _, p := range consentPhrases {
			lp := strings.ToLower(p)
			if strings.Contains(text, lp) || strings.Contains(aria, lp) || value == lp {
				found = true
				return false
			}
		}
		return true
	})
	if found {
		return true
	}

	for _, id := range consentContainers {
		if doc.Find(fmt.Sprintf("[id*=%q] button", id)).Length() > 0 {
			return true
		}
	}
	return false
}

// dismissConsent clicks the first matching decline control. It returns
// the query that worked, or false when nothing was clicked. Errors are
// logged, never returned.
func (c *Capturer) dismissConsent(ctx context.Context, sess Session, log *slog.Logger) (string, bool) {
	html, err := sess.HTML(ctx)
	switch {
	case err != nil:
		log.Debug("consent pre-scan unavailable", "error", err)
	case !hasConsentCandidate(html):
		return "", false
	}

	for _, q := range consentXPaths {
		clicked, err := sess.Click(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return "", false
			}
			log.Debug("consent query failed", "query", q, "error", err)
			continue
		}
		if clicked {
			return q, true
		}
	}
	return "", false
}
