// Package publisher delivers finished summaries to their readers.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"distill/internal/assembler"
	"distill/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, r *domain.SummaryResult) error
}

// Render formats a summary with its provenance footer.
func Render(r *domain.SummaryResult, bullets bool) string {
	var b strings.Builder

	text := r.FinalText
	if bullets {
		text = assembler.Bullets(text)
	}

	b.WriteString(text)
	b.WriteString("\n\n---\n")
	b.WriteString(assembler.Provenance(r))
	b.WriteByte('\n')

	return b.String()
}

// Writer prints summaries to w, prefixed by a warning for partial results.
type Writer struct {
	w       io.Writer
	bullets bool
}

func NewWriter(w io.Writer, bullets bool) *Writer {
	return &Writer{w: w, bullets: bullets}
}

func (p *Writer) Publish(_ context.Context, r *domain.SummaryResult) error {
	if r.Partial {
		if _, err := fmt.Fprintf(p.w, "warning: partial summary (%s)\n\n", reasons(r)); err != nil {
			return err
		}
	}

	_, err := io.WriteString(p.w, Render(r, p.bullets))
	return err
}

// File overwrites path with every published summary.
type File struct {
	path    string
	bullets bool
}

func NewFile(path string, bullets bool) *File {
	return &File{path: path, bullets: bullets}
}

func (p *File) Publish(_ context.Context, r *domain.SummaryResult) error {
	if err := os.WriteFile(p.path, []byte(Render(r, p.bullets)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}

	return nil
}

// Multi publishes to every publisher, even after a failure.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, r *domain.SummaryResult) error {
	var errs []error

	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func reasons(r *domain.SummaryResult) string {
	out := make([]string, 0, len(r.PartialReasons))
	for _, reason := range r.PartialReasons {
		out = append(out, string(reason))
	}

	return strings.Join(out, ", ")
}
