package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-scripts/sectioncrawl/internal/types"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// HTTPStrategy fetches raw markup with a plain GET. No scripts run.
type HTTPStrategy struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewHTTPStrategy returns the plain-HTTP strategy. Timeouts come from the
// context passed to Fetch.
func NewHTTPStrategy(client *http.Client, userAgent string, maxBody int64) *HTTPStrategy {
	if client == nil {
		client = &http.Client{}
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &HTTPStrategy{client: client, userAgent: userAgent, maxBody: maxBody}
}

func (h *HTTPStrategy) Name() types.FetchStrategy {
	return types.StrategyHTTPFallback
}

func (h *HTTPStrategy) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchFailure{Kind: FailureNetwork, Cause: err}
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchFailure{Kind: FailureStatus, StatusCode: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return nil, &FetchFailure{
			Kind:       FailureContent,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("unsupported content type %q", ct),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody))
	if err != nil {
		return nil, err
	}

	return &Response{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
	}, nil
}
