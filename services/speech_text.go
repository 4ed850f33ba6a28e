package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reMarkdownBold   = regexp.MustCompile(`\*\*([^*]+?)\*\*`)
	reMarkdownList   = regexp.MustCompile(`(?m)^\s*(?:[*-]|\d+\.)\s+`)
	reMarkdownMarker = regexp.MustCompile("[*_~`#]+")
	reWhitespace     = regexp.MustCompile(`\s+`)
)

// speakable turns question text or model output into a single line that a
// text-to-speech voice can read. Markdown markers are dropped and line breaks
// become sentence pauses.
func speakable(text string) string {
	text = reMarkdownBold.ReplaceAllString(text, "$1")
	text = reMarkdownList.ReplaceAllString(text, "")
	text = reMarkdownMarker.ReplaceAllString(text, "")

	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = reWhitespace.ReplaceAllString(strings.TrimSpace(line), " ")
		if line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) > 1 {
		for i, p := range parts {
			if last, _ := utf8.DecodeLastRuneInString(p); !strings.ContainsRune(".?!:,।", last) {
				parts[i] = p + "."
			}
		}
	}
	return strings.Join(parts, " ")
}
