package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"distill/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/ledongthuc/pdf"
)

// PDF extracts the plain text of a local or remote PDF document.
type PDF struct {
	client *resty.Client
	log    *slog.Logger
}

func NewPDF(client *resty.Client, log *slog.Logger) *PDF {
	return &PDF{client: client, log: log}
}

func (p *PDF) Extract(ctx context.Context, handle string) (*domain.Document, error) {
	handle = strings.TrimSpace(handle)

	var (
		data     []byte
		metadata = make(map[string]string)
	)

	if isHTTPURL(handle) {
		body, err := p.download(ctx, domain.SourcePDF, handle, handle)
		if err != nil {
			return nil, err
		}

		data = body
		metadata["url"] = handle
	} else {
		body, err := os.ReadFile(handle)
		if err != nil {
			kind := domain.ExtractionParseFailure
			if errors.Is(err, fs.ErrNotExist) {
				kind = domain.ExtractionNotFound
			}

			return nil, domain.NewExtractionError(kind, domain.SourcePDF, handle, fmt.Errorf("read file: %w", err))
		}

		data = body
		metadata["path"] = handle
	}

	content, err := readPDF(data)
	if err != nil {
		return nil, domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourcePDF, handle, err)
	}

	metadata["pages"] = strconv.Itoa(content.pages)
	if content.title != "" {
		metadata["title"] = content.title
	}

	return domain.NewDocument(domain.SourcePDF, handle, content.text, metadata), nil
}

// download fetches a remote PDF and checks it actually is one.
func (p *PDF) download(
	ctx context.Context,
	source domain.SourceKind,
	handle string,
	rawURL string,
) ([]byte, error) {
	resp, err := get(ctx, p.client, source, handle, rawURL)
	if err != nil {
		return nil, err
	}

	body := resp.Body()
	if mtype := mimetype.Detect(body); !mtype.Is("application/pdf") {
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, source, handle,
			fmt.Errorf("unexpected content type %s", mtype.String()))
	}

	p.log.DebugContext(ctx, "Downloaded PDF",
		"url", rawURL,
		"size", len(body))

	return body, nil
}

type pdfContent struct {
	text  string
	title string
	pages int
}

func readPDF(data []byte) (content pdfContent, err error) {
	if mtype := mimetype.Detect(data); !mtype.Is("application/pdf") {
		return pdfContent{}, fmt.Errorf("unexpected content type %s", mtype.String())
	}

	// The reader panics on some malformed cross reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return pdfContent{}, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return pdfContent{}, fmt.Errorf("get plain text: %w", err)
	}

	text, err := io.ReadAll(plain)
	if err != nil {
		return pdfContent{}, fmt.Errorf("read plain text: %w", err)
	}

	return pdfContent{
		text:  string(text),
		title: strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text()),
		pages: r.NumPage(),
	}, nil
}

func isHTTPURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
