package extractor

import (
	"context"
	"fmt"
	"net/http"

	"distill/internal/domain"

	"github.com/go-resty/resty/v2"
)

func newHTTPClient(cfg Config) *resty.Client {
	return resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
}

// get fetches rawURL and maps transport failures and unexpected statuses to
// extraction errors attributed to source.
func get(
	ctx context.Context,
	client *resty.Client,
	source domain.SourceKind,
	handle string,
	rawURL string,
) (*resty.Response, error) {
	resp, err := client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, domain.NewExtractionError(domain.ExtractionNetworkFailure, source, handle,
			fmt.Errorf("do request: %w", err))
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound || code == http.StatusGone:
		return nil, domain.NewExtractionError(domain.ExtractionNotFound, source, handle,
			fmt.Errorf("do request: unexpected status: %d", code))
	case !resp.IsSuccess():
		return nil, domain.NewExtractionError(domain.ExtractionNetworkFailure, source, handle,
			fmt.Errorf("do request: unexpected status: %d", code))
	}

	return resp, nil
}
