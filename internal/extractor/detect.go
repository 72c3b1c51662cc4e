package extractor

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"distill/internal/domain"

	"mvdan.cc/xurls/v2"
)

var strictURLRe = xurls.Strict()

// Detect guesses the source kind of a handle for the auto command. A handle
// that is a single URL is classified by host and extension, an existing path
// by extension, an arXiv id as a paper, and anything else is treated as text.
func Detect(handle string) domain.SourceKind {
	handle = strings.TrimSpace(handle)

	if match := strictURLRe.FindString(handle); match != "" && match == handle {
		return detectURL(handle)
	}

	if info, err := os.Stat(handle); err == nil && !info.IsDir() {
		if strings.EqualFold(filepath.Ext(handle), ".pdf") {
			return domain.SourcePDF
		}

		return domain.SourceFile
	}

	if _, ok := ParseArxivID(handle); ok && !strings.Contains(handle, " ") {
		return domain.SourceArxiv
	}

	return domain.SourceText
}

func detectURL(raw string) domain.SourceKind {
	if _, ok := ParseVideoID(raw); ok {
		return domain.SourceVideo
	}

	if _, ok := ParseArxivID(raw); ok {
		return domain.SourceArxiv
	}

	if u, err := url.Parse(raw); err == nil && strings.EqualFold(filepath.Ext(u.Path), ".pdf") {
		return domain.SourcePDF
	}

	return domain.SourceWebpage
}
