package normalize

import (
	"strings"
	"unicode/utf8"
)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// ID trims identifiers received from clients.
func ID(id string) string {
	return strings.TrimSpace(id)
}

// Blank reports whether s has no visible content.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Preview shortens text to at most n runes, appending an ellipsis when cut.
func Preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
