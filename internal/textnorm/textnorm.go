// Package textnorm holds the phrase normalization shared by recognizers and profiles.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, drops everything except letters, digits, and
// whitespace, and trims the result.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
