package capture

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// NormalizeURL trims raw, prepends http:// when no scheme is present and
// requires a host. Failures are KindValidation errors wrapping
// ErrInvalidURL.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", NewError(KindValidation, "normalize", raw, fmt.Errorf("%w: empty", ErrInvalidURL))
	}

	if !schemePrefix.MatchString(trimmed) {
		trimmed = "http://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", NewError(KindValidation, "normalize", raw, fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}
	if u.Hostname() == "" {
		return "", NewError(KindValidation, "normalize", raw, fmt.Errorf("%w: no host", ErrInvalidURL))
	}

	return trimmed, nil
}
