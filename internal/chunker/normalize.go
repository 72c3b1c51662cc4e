package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var citationRe = regexp.MustCompile(`\[\d+(?:\s*[,\-–]\s*\d+)*\]`)

// Normalize collapses whitespace runs into single spaces, drops control
// characters and invalid bytes, and trims the result. Chunks always
// concatenate back to the normalized form.
func Normalize(text string, stripCitations bool) string {
	if stripCitations {
		text = citationRe.ReplaceAllString(text, "")
	}

	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}

		if r == utf8.RuneError || unicode.IsControl(r) {
			continue
		}

		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	return b.String()
}

func trimToRuneBoundary(s string) string {
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}

	return s
}
