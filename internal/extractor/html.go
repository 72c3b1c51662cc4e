package extractor

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const invisibleSelector = "script, style, head, noscript, template, svg, iframe"

type htmlPage struct {
	title string
	text  string
}

// parseHTML returns the title and the visible text of an HTML document.
// Text nodes are joined with spaces so adjacent blocks do not run together.
func parseHTML(r io.Reader) (htmlPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return htmlPage{}, err
	}

	title := ""
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		title = strings.TrimSpace(content)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find(invisibleSelector).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	collectText(root, &b)

	return htmlPage{title: title, text: strings.TrimSpace(b.String())}, nil
}

func collectText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			if text := strings.TrimSpace(child.Text()); text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}

			return
		}

		collectText(child, b)
	})
}
