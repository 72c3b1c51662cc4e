package markdown

import (
	"strings"
	"unicode/utf8"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `._[](){}#|!+-=*~>` + "`" + `\`

// MaxMessageLength is the Telegram limit for one message.
const MaxMessageLength = 4096

func EscapeV2(input string) string {
	lookup := mdV2SpecialCharLookup()
	charsToEscape := 0

	for i := range len(input) {
		if lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func mdV2SpecialCharLookup() [256]bool {
	var m [256]bool
	for _, c := range []byte(mdV2SpecialChars) {
		m[c] = true
	}
	return m
}

// Split cuts escaped text into parts of at most limit runes, preferring line
// breaks, then spaces, in the back half of each part. A part never ends
// inside an escape sequence.
func Split(text string, limit int) []string {
	if limit <= 1 {
		limit = MaxMessageLength
	}

	var parts []string

	for utf8.RuneCountInString(text) > limit {
		cut := runeOffset(text, limit)
		minCut := cut / 2

		if i := strings.LastIndexByte(text[:cut], '\n'); i >= minCut {
			cut = i + 1
		} else if i := strings.LastIndexByte(text[:cut], ' '); i >= minCut {
			cut = i + 1
		}

		if trailingBackslashes(text[:cut])%2 == 1 {
			cut--
		}

		if part := strings.TrimSpace(text[:cut]); part != "" {
			parts = append(parts, part)
		}
		text = text[cut:]
	}

	if part := strings.TrimSpace(text); part != "" {
		parts = append(parts, part)
	}

	return parts
}

func runeOffset(s string, n int) int {
	offset := 0
	for i := 0; i < n && offset < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}

	return offset
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}

	return n
}
