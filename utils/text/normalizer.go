package text

import (
	"regexp"
	"strings"
)

// NormalizeForSpeech strips formatting that reads badly when spoken aloud:
// markdown emphasis, inline code, links, headings and emojis.
func NormalizeForSpeech(text string) string {
	text = removeMarkdown(text)
	text = removeEmojis(text)
	text = collapseSpaces(text)
	return strings.TrimSpace(text)
}

func removeMarkdown(text string) string {
	text = linkRegex.ReplaceAllString(text, "$1")
	text = headingRegex.ReplaceAllString(text, "")
	text = bulletRegex.ReplaceAllString(text, "")
	for _, marker := range []string{"**", "__", "~~", "*", "_", "`"} {
		text = strings.ReplaceAll(text, marker, "")
	}
	return text
}

func removeEmojis(text string) string {
	return emojiRegex.ReplaceAllString(text, "")
}

func collapseSpaces(text string) string {
	return multipleSpacesRegex.ReplaceAllString(text, " ")
}

var (
	// [label](url) reads as its label.
	linkRegex    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRegex = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	bulletRegex  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	// anything outside letters, numbers, punctuation and separators
	emojiRegex          = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\n]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)
