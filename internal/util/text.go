package util

import (
	"regexp"
	"strings"
	"unicode"
)

var reSpaces = regexp.MustCompile(`\s+`)

// brandFixes repairs tokens the generic lower-then-capitalise rule mangles.
var brandFixes = strings.NewReplacer(
	"ocado", "Ocado",
	"m&s", "M&S",
)

// NormalizeSpaces collapses runs of whitespace and trims the ends.
func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// Capitalise lower-cases the text and upper-cases the first letter, then
// applies the known brand corrections.
func Capitalise(text string) string {
	if text == "" {
		return text
	}
	lowered := strings.ToLower(text)
	runes := []rune(lowered)
	runes[0] = unicode.ToUpper(runes[0])
	return brandFixes.Replace(string(runes))
}
