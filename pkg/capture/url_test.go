package capture

import (
	"errors"
	"net/url"
	"testing"
)

func TestNormalizeURL_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare host", "example.com", "http://example.com"},
		{"host with path", "example.com/news/today", "http://example.com/news/today"},
		{"surrounding whitespace", "  example.com \n", "http://example.com"},
		{"https kept", "https://example.com/a?b=c", "https://example.com/a?b=c"},
		{"http kept", "http://example.com", "http://example.com"},
		{"upper case scheme kept", "HTTPS://Example.com", "HTTPS://Example.com"},
		{"host with port", "localhost:8080/app", "http://localhost:8080/app"},
		{"www host", "www.example.org", "http://www.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"not a url",
		"http://",
		"https:///path-only",
		"http://exa mple.com",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizeURL(in)
			if err == nil {
				t.Fatalf("NormalizeURL(%q) expected error", in)
			}
			if KindOf(err) != KindValidation {
				t.Errorf("expected KindValidation, got %v", KindOf(err))
			}
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("expected ErrInvalidURL in chain, got %v", err)
			}
		})
	}
}

func TestNormalizeURL_BareHostsGetHTTPAndAHost(t *testing.T) {
	hosts := []string{"a.io", "example.com", "sub.domain.example.co.uk", "127.0.0.1", "x-y.net"}

	for _, h := range hosts {
		got, err := NormalizeURL(h)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", h, err)
		}
		u, err := url.Parse(got)
		if err != nil {
			t.Fatalf("normalized URL %q does not parse: %v", got, err)
		}
		if u.Scheme != "http" {
			t.Errorf("expected http scheme for %q, got %q", h, u.Scheme)
		}
		if u.Hostname() == "" {
			t.Errorf("expected non-empty host for %q", h)
		}
	}
}
