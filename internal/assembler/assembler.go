// Package assembler turns ordered summaries into a SummaryResult. Everything
// here is pure: no I/O, no failure modes for well-formed input.
package assembler

import (
	"fmt"
	"strings"
	"time"

	"distill/internal/domain"
)

const paragraphSeparator = "\n\n"

// Parts carries what the orchestrator collected for one run.
type Parts struct {
	RunID string
	Model string
	// Summaries are the successful chunk summaries in chunk order.
	Summaries []string
	// Reduced is the output of the reduce phase, empty when none ran.
	Reduced         string
	ChunkCount      int
	ReduceDepth     int
	HardSplitChunks int
	Outcomes        []domain.ChunkOutcome
	CreatedAt       time.Time
}

// Assemble joins summaries in order, one paragraph each.
func Assemble(summaries []string) string {
	parts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, paragraphSeparator)
}

// Build combines the parts with the provenance of doc.
func Build(doc *domain.Document, p Parts) *domain.SummaryResult {
	final := strings.TrimSpace(p.Reduced)
	if final == "" {
		final = Assemble(p.Summaries)
	}

	var chunkSummaries []string
	if p.ChunkCount > 1 {
		chunkSummaries = append([]string(nil), p.Summaries...)
	}

	return &domain.SummaryResult{
		RunID:           p.RunID,
		FinalText:       final,
		SourceKind:      doc.Kind(),
		SourceHandle:    doc.Handle(),
		SourceMetadata:  doc.Metadata(),
		ChunkSummaries:  chunkSummaries,
		ChunkCount:      p.ChunkCount,
		Model:           p.Model,
		Outcomes:        append([]domain.ChunkOutcome(nil), p.Outcomes...),
		ReduceDepth:     p.ReduceDepth,
		HardSplitChunks: p.HardSplitChunks,
		CreatedAt:       p.CreatedAt,
	}
}

// Bullets renders text as one "* " line per sentence. Lines that already
// look like list items are kept as items.
func Bullets(text string) string {
	var items []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if item, ok := strings.CutPrefix(line, "* "); ok {
			items = append(items, item)
			continue
		}
		if item, ok := strings.CutPrefix(line, "- "); ok {
			items = append(items, item)
			continue
		}

		for _, sentence := range strings.Split(line, ". ") {
			sentence = strings.TrimSuffix(strings.TrimSpace(sentence), ".")
			if sentence != "" {
				items = append(items, sentence)
			}
		}
	}

	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("* ")
		b.WriteString(strings.TrimSpace(item))
	}

	return b.String()
}

// Provenance renders a short footer describing where a summary came from.
func Provenance(r *domain.SummaryResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "source: %s %s", r.SourceKind, r.SourceHandle)
	if title := r.SourceMetadata["title"]; title != "" {
		fmt.Fprintf(&b, " (%s)", title)
	}
	b.WriteByte('\n')

	succeeded := 0
	for _, o := range r.Outcomes {
		if o.State == domain.ChunkSucceeded {
			succeeded++
		}
	}
	fmt.Fprintf(&b, "chunks: %d (summarized: %d), reduce depth: %d", r.ChunkCount, succeeded, r.ReduceDepth)
	if r.HardSplitChunks > 0 {
		fmt.Fprintf(&b, ", hard split: %d", r.HardSplitChunks)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "model: %s", r.Model)

	if r.Partial {
		reasons := make([]string, 0, len(r.PartialReasons))
		for _, reason := range r.PartialReasons {
			reasons = append(reasons, string(reason))
		}
		fmt.Fprintf(&b, "\npartial: yes (%s)", strings.Join(reasons, ", "))
	}

	return b.String()
}
