// Package naming turns URLs into filesystem-safe screenshot file names.
package naming

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmylchreest/pageshot/pkg/capture"
)

// Ext is the extension of every screenshot file.
const Ext = ".png"

const (
	maxPathLen     = 100
	maxFallbackLen = 50
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	underscores = regexp.MustCompile(`_+`)
)

// FileName maps rawURL to "<domain>[_<path>].png". The leading "www." is
// dropped, the path is unescaped, every character outside [a-zA-Z0-9.-]
// becomes "_" and the path part is cut to 100 characters. URLs that cannot
// be parsed get "error_<sanitized>.png".
func FileName(rawURL string) string {
	name, err := fileName(rawURL)
	if err != nil {
		return fallback(rawURL)
	}
	return name
}

func fileName(rawURL string) (string, error) {
	normalized, err := capture.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", err
	}

	domain := strings.TrimPrefix(u.Host, "www.")
	domain = unsafeChars.ReplaceAllString(domain, "_")

	path := strings.Trim(u.Path, "/")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = unsafeChars.ReplaceAllString(path, "_")
	if len(path) > maxPathLen {
		path = path[:maxPathLen]
	}

	name := domain + Ext
	if path != "" {
		name = domain + "_" + path + Ext
	}
	return underscores.ReplaceAllString(name, "_"), nil
}

func fallback(rawURL string) string {
	safe := unsafeChars.ReplaceAllString(rawURL, "_")
	if len(safe) > maxFallbackLen {
		safe = safe[:maxFallbackLen]
	}
	return "error_" + safe + Ext
}

// SegmentName returns the file name of segment index for a base name as
// produced by FileName: "<base>_<index>.png".
func SegmentName(base string, index int) string {
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, Ext), index, Ext)
}

// SegmentPrefix is the common prefix of every SegmentName for base.
func SegmentPrefix(base string) string {
	return strings.TrimSuffix(base, Ext) + "_"
}

// SegmentIndex parses the index out of a segment file name. It reports
// false when name is not a segment of base.
func SegmentIndex(base, name string) (int, bool) {
	prefix := SegmentPrefix(base)
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, Ext) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), Ext)
	if digits == "" {
		return 0, false
	}
	// Atoi alone would accept a sign.
	if strings.Trim(digits, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
