package naming

import (
	"strings"
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"bare domain", "example.com", "example.com.png"},
		{"www stripped", "https://www.example.com/", "example.com.png"},
		{"path", "https://example.com/news/today", "example.com_news_today.png"},
		{"query ignored", "https://example.com/a?b=c", "example.com_a.png"},
		{"escaped path", "https://example.com/caf%C3%A9%20menu", "example.com_caf_menu.png"},
		{"port", "localhost:8080/app", "localhost_8080_app.png"},
		{"underscores collapsed", "https://example.com/a__b//c", "example.com_a_b_c.png"},
		{"dots and dashes kept", "https://sub-domain.example.org/v1.2/x-y", "sub-domain.example.org_v1.2_x-y.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.url); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFileName_TruncatesPath(t *testing.T) {
	got := FileName("https://example.com/" + strings.Repeat("a", 250))
	want := "example.com_" + strings.Repeat("a", 100) + ".png"
	if got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}

func TestFileName_Fallback(t *testing.T) {
	got := FileName("not a url")
	if got != "error_not_a_url.png" {
		t.Errorf("FileName() = %q", got)
	}

	long := FileName(strings.Repeat("bad url ", 20))
	if !strings.HasPrefix(long, "error_") || len(long) != len("error_")+50+len(".png") {
		t.Errorf("fallback not truncated: %q", long)
	}
}

func TestFileName_OnlySafeCharacters(t *testing.T) {
	urls := []string{
		"https://example.com/ünïcödé/path?x=1#frag",
		"https://example.com/パス/ページ",
		"example.com/a b/c%2Fd",
	}
	for _, u := range urls {
		name := strings.TrimSuffix(FileName(u), Ext)
		if strings.Trim(name, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789._-") != "" {
			t.Errorf("FileName(%q) = %q contains unsafe characters", u, name)
		}
		if strings.Contains(name, "__") {
			t.Errorf("FileName(%q) = %q contains a run of underscores", u, name)
		}
	}
}

func TestSegmentName(t *testing.T) {
	if got := SegmentName("example.com_news.png", 3); got != "example.com_news_3.png" {
		t.Errorf("SegmentName() = %q", got)
	}
	if got := SegmentName("example.com", 0); got != "example.com_0.png" {
		t.Errorf("SegmentName() without extension = %q", got)
	}
}

func TestSegmentIndex(t *testing.T) {
	base := "example.com.png"
	tests := []struct {
		name   string
		wantN  int
		wantOK bool
	}{
		{"example.com_0.png", 0, true},
		{"example.com_12.png", 12, true},
		{"example.com.png", 0, false},
		{"example.com_news_1.png", 0, false},
		{"example.com_.png", 0, false},
		{"other.com_1.png", 0, false},
		{"example.com_-1.png", 0, false},
		{"example.com_+1.png", 0, false},
		{"example.com_" + strings.Repeat("9", 40) + ".png", 0, false},
	}
	for _, tt := range tests {
		n, ok := SegmentIndex(base, tt.name)
		if n != tt.wantN || ok != tt.wantOK {
			t.Errorf("SegmentIndex(%q) = %d, %v; want %d, %v", tt.name, n, ok, tt.wantN, tt.wantOK)
		}
	}
}
