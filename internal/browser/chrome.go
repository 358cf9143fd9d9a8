package browser

import (
	"os"
	"path/filepath"
	"runtime"
)

// wellKnownPaths lists the usual install locations of Chrome and Chromium
// for goos, most preferred first.
func wellKnownPaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		}
	case "windows":
		var paths []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LocalAppData"} {
			if dir := os.Getenv(env); dir != "" {
				paths = append(paths, filepath.Join(dir, "Google", "Chrome", "Application", "chrome.exe"))
			}
		}
		return paths
	default:
		return []string{
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/snap/bin/chromium",
			"/usr/local/bin/chromium",
		}
	}
}

// statFunc reports whether a file exists at path.
type statFunc func(path string) bool

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// FindChromePath returns the first existing well-known browser location
// for this platform, or "" when none exists.
func FindChromePath() string {
	return findChrome(runtime.GOOS, fileExists)
}

func findChrome(goos string, exists statFunc) string {
	for _, p := range wellKnownPaths(goos) {
		if exists(p) {
			return p
		}
	}
	return ""
}
