package util

import (
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeString trims whitespace and removes control characters from s.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeFilename strips any directory components from name and replaces
// characters that are unsafe in stored filenames.
func SanitizeFilename(name string) string {
	safe := filepath.Base(SanitizeString(name))
	replacer := strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_",
		"|", "_", "?", "_", "*", "_", "\x00", "_",
	)
	return replacer.Replace(safe)
}
