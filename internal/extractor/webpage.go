package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"distill/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
)

type Webpage struct {
	client *resty.Client
	log    *slog.Logger
}

func NewWebpage(client *resty.Client, log *slog.Logger) *Webpage {
	return &Webpage{client: client, log: log}
}

func (w *Webpage) Extract(ctx context.Context, handle string) (*domain.Document, error) {
	pageURL := strings.TrimSpace(handle)

	if err := validateHTTPURL(pageURL); err != nil {
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, domain.SourceWebpage, handle, err)
	}

	resp, err := get(ctx, w.client, domain.SourceWebpage, handle, pageURL)
	if err != nil {
		return nil, err
	}

	body := resp.Body()
	metadata := map[string]string{
		"url":    pageURL,
		"status": strconv.Itoa(resp.StatusCode()),
	}

	mtype := mimetype.Detect(body)
	switch {
	case mtype.Is("text/html"):
	case isText(mtype):
		return domain.NewDocument(domain.SourceWebpage, pageURL, string(body), metadata), nil
	default:
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, domain.SourceWebpage, handle,
			fmt.Errorf("unsupported content type %s", mtype.String()))
	}

	page, err := parseHTML(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourceWebpage, handle,
			fmt.Errorf("create document from reader: %w", err))
	}

	if page.title == "" {
		w.log.WarnContext(ctx, "Empty webpage title",
			"url", pageURL)
	} else {
		metadata["title"] = page.title
	}

	return domain.NewDocument(domain.SourceWebpage, pageURL, page.text, metadata), nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL scheme must be http or https")
	}

	if u.Host == "" {
		return errors.New("URL host is empty")
	}

	return nil
}
