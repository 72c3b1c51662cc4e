package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/openai/openai-go/v3"
)

var (
	ErrEmptyInput  = errors.New("input is empty")
	ErrEmptyOutput = errors.New("output text is missing")
	ErrIncomplete  = errors.New("response is incomplete")
)

type FailureKind int

const (
	FailurePermanent FailureKind = iota
	FailureTransient
	FailureQuota
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureQuota:
		return "quota"
	default:
		return "permanent"
	}
}

// StatusError is returned by backends that talk HTTP without an SDK.
type StatusError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d (type = %s): %s",
		e.Provider, e.StatusCode, e.Type, e.Message)
}

// Classify decides whether a failed request is worth retrying. Rate limits,
// server errors and network errors are transient. Exhausted quota is final
// for the whole run.
func Classify(err error) FailureKind {
	if err == nil {
		return FailurePermanent
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailurePermanent
	}

	if errors.Is(err, ErrQuota) {
		return FailureQuota
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, apiErr.Code, apiErr.Type)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode, "", statusErr.Type)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return FailureTransient
	}

	return FailurePermanent
}

// ErrQuota lets stubs and wrappers report quota exhaustion directly.
var ErrQuota = errors.New("quota exceeded")

func classifyStatus(statusCode int, code string, errType string) FailureKind {
	switch code {
	case "insufficient_quota", "billing_hard_limit_reached":
		return FailureQuota
	}

	switch errType {
	case "insufficient_quota", "billing_error":
		return FailureQuota
	case "overloaded_error", "rate_limit_error", "api_error":
		return FailureTransient
	}

	if HTTPStatusRetryable(statusCode) {
		return FailureTransient
	}

	return FailurePermanent
}

// HTTPStatusRetryable checks if an HTTP status code is retryable.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= http.StatusInternalServerError ||
		statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout
}
