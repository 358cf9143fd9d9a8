package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkSelector picks the links to follow out of a page.
type LinkSelector struct {
	css     string
	pattern *regexp.Regexp
}

// NewLinkSelector builds a selector from a CSS selector (default
// "a[href]") and an optional URL regular expression.
func NewLinkSelector(css, pattern string) (*LinkSelector, error) {
	ls := &LinkSelector{css: css}
	if ls.css == "" {
		ls.css = "a[href]"
	}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("follow pattern: %w", err)
		}
		ls.pattern = re
	}
	return ls, nil
}

// Links returns the absolute, de-duplicated links in html that match the
// selector, in document order.
func (ls *LinkSelector) Links(html, pageURL string) ([]string, error) {
	doc, base, err := parse(html, pageURL)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find(ls.css).Each(func(_ int, s *goquery.Selection) {
		link, ok := resolve(base, s)
		if !ok || seen[link] {
			return
		}
		if ls.pattern != nil && !ls.pattern.MatchString(link) {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links, nil
}

// NextPage returns the target of the first element matching css.
func NextPage(css, html, pageURL string) (string, bool) {
	if css == "" {
		return "", false
	}
	doc, base, err := parse(html, pageURL)
	if err != nil {
		return "", false
	}
	return resolve(base, doc.Find(css).First())
}

func parse(html, pageURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, err
	}
	// <base href> overrides the page URL for relative links.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(href); err == nil {
			base = base.ResolveReference(b)
		}
	}
	return doc, base, nil
}

// resolve turns the href of s into an absolute http(s) URL without a
// fragment.
func resolve(base *url.URL, s *goquery.Selection) (string, bool) {
	href, ok := s.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
