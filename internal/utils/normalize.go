package utils

import (
	"regexp"
	"strings"
)

var (
	spaceRegex = regexp.MustCompile(`\s+`)
	punctRegex = regexp.MustCompile(`[.,!?;:'"]+`)
)

// NormalizeContent collapses whitespace, lowercases, and strips simple
// punctuation so trivially varied repeats compare equal.
func NormalizeContent(content string) string {
	content = strings.ToLower(strings.TrimSpace(content))
	content = punctRegex.ReplaceAllString(content, "")
	content = spaceRegex.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}
