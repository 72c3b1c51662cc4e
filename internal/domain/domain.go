package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"time"
)

type SourceKind string

const (
	SourceText    SourceKind = "text"
	SourceFile    SourceKind = "file"
	SourceWebpage SourceKind = "webpage"
	SourceVideo   SourceKind = "video"
	SourcePDF     SourceKind = "pdf"
	SourceArxiv   SourceKind = "arxiv"
)

// SourceKinds lists every supported kind in a stable order.
func SourceKinds() []SourceKind {
	return []SourceKind{
		SourceText,
		SourceFile,
		SourceWebpage,
		SourceVideo,
		SourcePDF,
		SourceArxiv,
	}
}

func ParseSourceKind(raw string) (SourceKind, error) {
	kind := SourceKind(raw)
	if !slices.Contains(SourceKinds(), kind) {
		return "", fmt.Errorf("unknown source kind %q", raw)
	}

	return kind, nil
}

// Document is the canonical representation of extracted text. It is not
// modified after extraction; Metadata returns a copy.
type Document struct {
	kind     SourceKind
	handle   string
	text     string
	metadata map[string]string
}

func NewDocument(kind SourceKind, handle, text string, metadata map[string]string) *Document {
	return &Document{
		kind:     kind,
		handle:   handle,
		text:     text,
		metadata: maps.Clone(metadata),
	}
}

func (d *Document) Kind() SourceKind { return d.kind }

func (d *Document) Handle() string { return d.handle }

func (d *Document) Text() string { return d.text }

func (d *Document) Metadata() map[string]string {
	m := maps.Clone(d.metadata)
	if m == nil {
		m = make(map[string]string)
	}

	return m
}

func (d *Document) MetadataValue(key string) string {
	return d.metadata[key]
}

// Hash identifies the document content, so an unchanged source can be
// skipped by watches.
func (d *Document) Hash() string {
	sum := sha256.Sum256([]byte(string(d.kind) + "\x00" + d.text))
	return hex.EncodeToString(sum[:])
}

type Chunk struct {
	// Doc is a back reference and is never owned by the chunk.
	Doc        *Document
	Index      int
	Text       string
	TokenCount int
	// HardSplit marks a piece of a sentence that did not fit the bound.
	HardSplit bool
}

type ChunkState int

const (
	ChunkPending ChunkState = iota
	ChunkInFlight
	ChunkRetrying
	ChunkSucceeded
	ChunkFailed
)

func (s ChunkState) String() string {
	switch s {
	case ChunkPending:
		return "pending"
	case ChunkInFlight:
		return "in_flight"
	case ChunkRetrying:
		return "retrying"
	case ChunkSucceeded:
		return "succeeded"
	case ChunkFailed:
		return "failed"
	default:
		return fmt.Sprintf("ChunkState(%d)", int(s))
	}
}

func (s ChunkState) Terminal() bool {
	return s == ChunkSucceeded || s == ChunkFailed
}

// CanTransition reports whether the chunk lifecycle allows moving from s to next.
func (s ChunkState) CanTransition(next ChunkState) bool {
	switch s {
	case ChunkPending:
		return next == ChunkInFlight || next == ChunkFailed
	case ChunkInFlight:
		return next == ChunkSucceeded || next == ChunkRetrying || next == ChunkFailed
	case ChunkRetrying:
		return next == ChunkInFlight || next == ChunkFailed
	default:
		return false
	}
}

type ChunkOutcome struct {
	Index    int
	State    ChunkState
	Attempts int
	Err      string
}

type PartialReason string

const (
	PartialChunksFailed        PartialReason = "chunks_failed"
	PartialCanceled            PartialReason = "canceled"
	PartialReduceDepthExceeded PartialReason = "reduce_depth_exceeded"
	PartialReduceFailed        PartialReason = "reduce_failed"
)

type SummaryResult struct {
	RunID          string
	FinalText      string
	SourceKind     SourceKind
	SourceHandle   string
	SourceMetadata map[string]string
	// ChunkSummaries is empty when the document fit into a single chunk.
	ChunkSummaries  []string
	ChunkCount      int
	Model           string
	Partial         bool
	PartialReasons  []PartialReason
	Outcomes        []ChunkOutcome
	ReduceDepth     int
	HardSplitChunks int
	CreatedAt       time.Time
}

func (r *SummaryResult) MarkPartial(reason PartialReason) {
	r.Partial = true
	if !slices.Contains(r.PartialReasons, reason) {
		r.PartialReasons = append(r.PartialReasons, reason)
	}
}

type Watch struct {
	ID        int64
	Kind      SourceKind
	Handle    string
	LastHash  string
	LastRunAt time.Time
}

type StoredSummary struct {
	ID         int64
	RunID      string
	Kind       SourceKind
	Handle     string
	Model      string
	FinalText  string
	Partial    bool
	ChunkCount int
	Metadata   map[string]string
	CreatedAt  time.Time
}
