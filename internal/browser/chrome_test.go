package browser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindChrome_FirstExisting(t *testing.T) {
	present := map[string]bool{
		"/usr/bin/google-chrome": true,
		"/snap/bin/chromium":     true,
	}
	got := findChrome("linux", func(p string) bool { return present[p] })
	if got != "/usr/bin/google-chrome" {
		t.Errorf("findChrome() = %q, want /usr/bin/google-chrome", got)
	}
}

func TestFindChrome_NoneFound(t *testing.T) {
	if got := findChrome("linux", func(string) bool { return false }); got != "" {
		t.Errorf("findChrome() = %q, want empty", got)
	}
}

func TestWellKnownPaths_PerPlatform(t *testing.T) {
	if paths := wellKnownPaths("darwin"); len(paths) == 0 || !strings.HasSuffix(paths[0], "Google Chrome") {
		t.Errorf("unexpected darwin paths %v", paths)
	}
	if paths := wellKnownPaths("linux"); paths[0] != "/usr/bin/chromium" {
		t.Errorf("unexpected linux paths %v", paths)
	}

	t.Setenv("ProgramFiles", `C:\Program Files`)
	t.Setenv("ProgramFiles(x86)", "")
	t.Setenv("LocalAppData", "")
	paths := wellKnownPaths("windows")
	if len(paths) != 1 || !strings.HasSuffix(paths[0], "chrome.exe") {
		t.Errorf("unexpected windows paths %v", paths)
	}
}

func TestMakeExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := makeExecutable(path); err != nil {
		t.Fatalf("makeExecutable() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o111 != 0o111 {
		t.Errorf("expected a+x, got %v", info.Mode().Perm())
	}

	if err := makeExecutable(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestClickScript_QuotesXPath(t *testing.T) {
	xpath := `//button[normalize-space(text())='Reject "all"']`
	script := clickScript(xpath)

	if !strings.Contains(script, `"//button[normalize-space(text())='Reject \"all\"']"`) {
		t.Errorf("xpath not embedded as a JS string literal:\n%s", script)
	}
	if !strings.Contains(script, "el.click()") {
		t.Error("script should click the element")
	}
	if !strings.Contains(script, "visibility") {
		t.Error("script should check visibility")
	}
}

func TestStyleScript_QuotesCSS(t *testing.T) {
	script := styleScript("a { content: \"x\" }\n")
	if !strings.Contains(script, `"a { content: \"x\" }\n"`) {
		t.Errorf("css not embedded as a JS string literal:\n%s", script)
	}
}

func TestScrollScript(t *testing.T) {
	if got := scrollScript(2160); got != "window.scrollTo(0, 2160)" {
		t.Errorf("scrollScript() = %q", got)
	}
}

func TestAllocatorOptions_Count(t *testing.T) {
	cfg := DefaultConfig()
	base := len(allocatorOptions(cfg, ""))

	if got := len(allocatorOptions(cfg, "/usr/bin/chromium")); got != base+1 {
		t.Errorf("exec path should add one option, got %d vs %d", got, base)
	}

	cfg.UserAgent = "pageshot-test"
	cfg.Stealth = true
	if got := len(allocatorOptions(cfg, "")); got != base+1+len(stealthFlags()) {
		t.Errorf("user agent and stealth flags not applied, got %d", got)
	}
}
