package util

import "strings"

// TruncateString cuts s to maxRunes runes and marks the cut with "...".
func TruncateString(s string, maxRunes int) string {
	cut := TruncateRunes(s, maxRunes)
	if cut == s {
		return s
	}
	return cut + "..."
}

// TruncateRunes cuts s to at most maxRunes runes without a marker.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes < 0 {
		return ""
	}
	if len(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

// Normalize lowercases and trims s for use in keys.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
