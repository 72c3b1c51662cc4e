package domain

import (
	"errors"
	"fmt"
)

type ExtractionErrorKind string

const (
	ExtractionNotFound       ExtractionErrorKind = "not_found"
	ExtractionUnsupported    ExtractionErrorKind = "unsupported"
	ExtractionNetworkFailure ExtractionErrorKind = "network_failure"
	ExtractionParseFailure   ExtractionErrorKind = "parse_failure"
)

// ExtractionError reports a source that is unreachable, unsupported or malformed.
type ExtractionError struct {
	Kind   ExtractionErrorKind
	Source SourceKind
	Handle string
	Err    error
}

func NewExtractionError(
	kind ExtractionErrorKind,
	source SourceKind,
	handle string,
	err error,
) *ExtractionError {
	return &ExtractionError{Kind: kind, Source: source, Handle: handle, Err: err}
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s (handle = %s): %s", e.Source, e.Handle, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is matches another ExtractionError by kind, so sentinels such as
// ErrSourceNotFound work with errors.Is.
func (e *ExtractionError) Is(target error) bool {
	var t *ExtractionError
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind && (t.Source == "" || t.Source == e.Source)
}

type ChunkingErrorKind string

const ChunkingEmptyDocument ChunkingErrorKind = "empty_document"

type ChunkingError struct {
	Kind ChunkingErrorKind
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunk document: %s", e.Kind)
}

func (e *ChunkingError) Is(target error) bool {
	var t *ChunkingError
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind
}

type SummarizationErrorKind string

const (
	SummarizationAllChunksFailed SummarizationErrorKind = "all_chunks_failed"
	SummarizationTimeout         SummarizationErrorKind = "timeout"
	SummarizationQuotaExceeded   SummarizationErrorKind = "quota_exceeded"
	SummarizationCanceled        SummarizationErrorKind = "canceled"
)

type SummarizationError struct {
	Kind SummarizationErrorKind
	Err  error
}

func (e *SummarizationError) Error() string {
	msg := fmt.Sprintf("summarize: %s", e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *SummarizationError) Unwrap() error { return e.Err }

func (e *SummarizationError) Is(target error) bool {
	var t *SummarizationError
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind
}

var (
	ErrSourceNotFound    = &ExtractionError{Kind: ExtractionNotFound}
	ErrSourceUnsupported = &ExtractionError{Kind: ExtractionUnsupported}
	ErrSourceNetwork     = &ExtractionError{Kind: ExtractionNetworkFailure}
	ErrSourceParse       = &ExtractionError{Kind: ExtractionParseFailure}

	ErrEmptyDocument = &ChunkingError{Kind: ChunkingEmptyDocument}

	ErrAllChunksFailed = &SummarizationError{Kind: SummarizationAllChunksFailed}
	ErrTimeout         = &SummarizationError{Kind: SummarizationTimeout}
	ErrQuotaExceeded   = &SummarizationError{Kind: SummarizationQuotaExceeded}
	ErrCanceled        = &SummarizationError{Kind: SummarizationCanceled}
)
