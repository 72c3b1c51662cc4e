package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"distill/internal/domain"

	"github.com/mmcdole/gofeed"
)

var (
	arxivNewIDRe = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldIDRe = regexp.MustCompile(`^[a-z][a-z\-]*(\.[A-Z]{2})?/\d{7}(v\d+)?$`)
)

// Arxiv reads paper metadata from the export API and the full text from the
// paper's PDF.
type Arxiv struct {
	parser     *gofeed.Parser
	apiURL     string
	pdfBaseURL string
	pdf        *PDF
	log        *slog.Logger
}

func NewArxiv(apiURL, pdfBaseURL, userAgent string, pdf *PDF, log *slog.Logger) *Arxiv {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	return &Arxiv{
		parser:     parser,
		apiURL:     apiURL,
		pdfBaseURL: strings.TrimRight(pdfBaseURL, "/"),
		pdf:        pdf,
		log:        log,
	}
}

func (a *Arxiv) Extract(ctx context.Context, handle string) (*domain.Document, error) {
	id, ok := ParseArxivID(handle)
	if !ok {
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, domain.SourceArxiv, handle,
			errors.New("not an arXiv id or URL"))
	}

	queryURL := a.apiURL + "?id_list=" + url.QueryEscape(id)

	feed, err := a.parser.ParseURLWithContext(queryURL, ctx)
	if err != nil {
		return nil, a.feedError(handle, err)
	}

	if len(feed.Items) == 0 || strings.Contains(feed.Items[0].GUID, "/api/errors") {
		return nil, domain.NewExtractionError(domain.ExtractionNotFound, domain.SourceArxiv, handle,
			fmt.Errorf("paper %s not found", id))
	}

	item := feed.Items[0]
	metadata := arxivMetadata(id, item)

	pdfURL := a.pdfBaseURL + "/" + id
	metadata["pdf_url"] = pdfURL

	body, err := a.pdf.download(ctx, domain.SourceArxiv, handle, pdfURL)
	if err != nil {
		return nil, err
	}

	content, err := readPDF(body)
	if err != nil {
		return nil, domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourceArxiv, handle, err)
	}

	metadata["pages"] = fmt.Sprint(content.pages)

	text := content.text
	if strings.TrimSpace(text) == "" {
		a.log.WarnContext(ctx, "Empty arXiv PDF text, using abstract",
			"arxivID", id)

		text = metadata["abstract"]
	}

	return domain.NewDocument(domain.SourceArxiv, id, text, metadata), nil
}

func (a *Arxiv) feedError(handle string, err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		kind := domain.ExtractionNetworkFailure
		if httpErr.StatusCode == http.StatusNotFound {
			kind = domain.ExtractionNotFound
		}

		return domain.NewExtractionError(kind, domain.SourceArxiv, handle, fmt.Errorf("parse feed: %w", err))
	}

	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourceArxiv, handle,
			fmt.Errorf("parse feed: %w", err))
	}

	return domain.NewExtractionError(domain.ExtractionNetworkFailure, domain.SourceArxiv, handle,
		fmt.Errorf("parse feed: %w", err))
}

func arxivMetadata(id string, item *gofeed.Item) map[string]string {
	metadata := map[string]string{
		"arxiv_id": id,
		"url":      DefaultArxivAbsBaseURL + "/" + id,
		"title":    strings.Join(strings.Fields(item.Title), " "),
	}

	if abstract := strings.Join(strings.Fields(item.Description), " "); abstract != "" {
		metadata["abstract"] = abstract
	}

	authors := make([]string, 0, len(item.Authors))
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			authors = append(authors, strings.TrimSpace(author.Name))
		}
	}
	if len(authors) > 0 {
		metadata["authors"] = strings.Join(authors, ", ")
	}

	if item.PublishedParsed != nil {
		metadata["published"] = item.PublishedParsed.UTC().Format(time.RFC3339)
	}

	if len(item.Categories) > 0 {
		metadata["categories"] = strings.Join(item.Categories, ", ")
	}

	return metadata
}

// ParseArxivID accepts new and old style ids, optionally versioned, and
// arxiv.org abs or pdf URLs.
func ParseArxivID(handle string) (string, bool) {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "arXiv:")
	handle = strings.TrimPrefix(handle, "arxiv:")

	if isArxivID(handle) {
		return handle, true
	}

	u, err := url.Parse(handle)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "arxiv.org" && host != "export.arxiv.org" {
		return "", false
	}

	path := strings.TrimPrefix(u.Path, "/")
	for _, prefix := range []string{"abs/", "pdf/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			id := strings.TrimSuffix(strings.TrimSuffix(rest, "/"), ".pdf")
			if isArxivID(id) {
				return id, true
			}
		}
	}

	return "", false
}

func isArxivID(s string) bool {
	return arxivNewIDRe.MatchString(s) || arxivOldIDRe.MatchString(s)
}
