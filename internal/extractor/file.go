package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"distill/internal/domain"

	"github.com/gabriel-vasile/mimetype"
)

// File reads local text files. HTML files are reduced to their visible text.
type File struct {
	log *slog.Logger
}

func NewFile(log *slog.Logger) *File {
	return &File{log: log}
}

func (f *File) Extract(ctx context.Context, handle string) (*domain.Document, error) {
	info, err := os.Stat(handle)
	if err != nil {
		kind := domain.ExtractionParseFailure
		if errors.Is(err, fs.ErrNotExist) {
			kind = domain.ExtractionNotFound
		}

		return nil, domain.NewExtractionError(kind, domain.SourceFile, handle, fmt.Errorf("stat file: %w", err))
	}

	if info.IsDir() {
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, domain.SourceFile, handle,
			errors.New("path is a directory"))
	}

	data, err := os.ReadFile(handle)
	if err != nil {
		return nil, domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourceFile, handle,
			fmt.Errorf("read file: %w", err))
	}

	mtype := mimetype.Detect(data)
	if !isText(mtype) {
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, domain.SourceFile, handle,
			fmt.Errorf("unsupported content type %s", mtype.String()))
	}

	metadata := map[string]string{
		"path": handle,
		"name": filepath.Base(handle),
		"mime": mtype.String(),
		"size": strconv.FormatInt(info.Size(), 10),
	}

	text := string(data)

	if mtype.Is("text/html") {
		page, parseErr := parseHTML(bytes.NewReader(data))
		if parseErr != nil {
			return nil, domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourceFile, handle,
				fmt.Errorf("parse html: %w", parseErr))
		}

		text = page.text
		if page.title != "" {
			metadata["title"] = page.title
		}
	}

	f.log.DebugContext(ctx, "Read file",
		"path", handle,
		"mime", mtype.String(),
		"size", info.Size())

	return domain.NewDocument(domain.SourceFile, handle, text, metadata), nil
}

// isText accepts text/plain and everything mimetype derives from it, which
// covers HTML, JSON, XML, CSV and source files.
func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}

	return false
}
