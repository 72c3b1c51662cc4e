package markdown_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"distill/internal/markdown"
)

func TestEscapeV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"v1.2 (beta)!", `v1\.2 \(beta\)\!`},
		{"a_b*c", `a\_b\*c`},
		{`back\slash`, `back\\slash`},
		{"привет, мир!", `привет, мир\!`},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			if got := markdown.EscapeV2(test.in); got != test.want {
				t.Fatalf("EscapeV2(%q) = %q, want %q", test.in, got, test.want)
			}
		})
	}
}

func TestSplitShortText(t *testing.T) {
	parts := markdown.Split("short", 10)
	if len(parts) != 1 || parts[0] != "short" {
		t.Fatalf("unexpected parts: %q", parts)
	}
}

func TestSplitPrefersLineBreaks(t *testing.T) {
	text := "first line\nsecond line\nthird line"

	parts := markdown.Split(text, 15)
	want := []string{"first line", "second line", "third line"}

	if len(parts) != len(want) {
		t.Fatalf("unexpected parts: %q", parts)
	}

	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("part %d = %q, want %q", i, parts[i], want[i])
		}
	}
}

func TestSplitFillsPartsBeforeBreaking(t *testing.T) {
	text := "head\n" + strings.Repeat("word ", 10)

	parts := markdown.Split(text, 20)
	if len(parts) == 0 || parts[0] != "head\nword word word" {
		t.Fatalf("an early line break must not leave a short part: %q", parts)
	}

	for _, part := range parts {
		if utf8.RuneCountInString(part) > 20 {
			t.Fatalf("part %q exceeds limit", part)
		}
	}
}

func TestSplitRespectsLimitAndEscapes(t *testing.T) {
	text := strings.Repeat(`ab\.`, 50)

	parts := markdown.Split(text, 7)
	if strings.Join(parts, "") != text {
		t.Fatalf("split must not lose text")
	}

	for _, part := range parts {
		if utf8.RuneCountInString(part) > 7 {
			t.Fatalf("part %q exceeds limit", part)
		}

		if strings.HasSuffix(part, `\`) {
			t.Fatalf("part %q ends inside an escape sequence", part)
		}
	}
}

func TestSplitMultibyte(t *testing.T) {
	text := strings.Repeat("я", 10)

	parts := markdown.Split(text, 4)
	if len(parts) != 3 || strings.Join(parts, "") != text {
		t.Fatalf("unexpected parts: %q", parts)
	}
}
