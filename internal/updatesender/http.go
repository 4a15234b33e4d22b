package updatesender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Outcome classifies a single update submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDenied   Outcome = "denied"
	OutcomeFailed   Outcome = "failed"
)

// httpClient wraps http.Client with the update endpoint.
type httpClient struct {
	client *http.Client
	url    string
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(baseURL, "/") + "/update",
	}
}

// post submits one form-encoded update.
func (c *httpClient) post(ctx context.Context, form url.Values) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return OutcomeFailed, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusOK:
		return OutcomeAccepted, nil
	case http.StatusUnauthorized:
		return OutcomeDenied, fmt.Errorf("%s", strings.TrimSpace(string(body)))
	default:
		return OutcomeFailed, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
