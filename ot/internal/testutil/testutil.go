// Package testutil locates real font files for integration tests that
// exercise table parsing against production fonts rather than synthetic
// fixtures. Fonts are never vendored into the module; tests skip cleanly
// when none are found.
package testutil

import (
	"os"
	"path/filepath"
)

// searchDirs are checked, in order, for a requested font file. TESTFONT_DIR
// lets CI point at a shared font cache without modifying the module.
func searchDirs() []string {
	dirs := []string{
		"testdata/fonts",
		"../testdata/fonts",
		"/usr/share/fonts/truetype/roboto",
		"/usr/share/fonts/truetype",
	}
	if d := os.Getenv("TESTFONT_DIR"); d != "" {
		dirs = append([]string{d}, dirs...)
	}
	return dirs
}

// FindTestFont returns the path to name if it can be found under any
// known test font directory, or "" if not found.
func FindTestFont(name string) string {
	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	var found string
	for _, root := range []string{"/usr/share/fonts", "/usr/local/share/fonts"} {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || found != "" {
				return nil
			}
			if !info.IsDir() && filepath.Base(path) == name {
				found = path
			}
			return nil
		})
		if found != "" {
			break
		}
	}
	return found
}
