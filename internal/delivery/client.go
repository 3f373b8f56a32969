package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
)

const maxErrorBodyBytes = 2048

// CDPClient sends one lead payload to one CDP system.
type CDPClient interface {
	Deliver(ctx context.Context, system config.CDPSystemConfig, payload []byte) error
}

// StatusError is returned when a CDP system answers with a non-2xx status.
// The status code is recorded on the failed-delivery row for diagnostics.
type StatusError struct {
	System     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cdp system %s returned status %d: %s", e.System, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return apperrors.ErrDelivery
}

// HTTPClient delivers payloads over HTTP POST. One shared transport serves
// all systems; the per-attempt timeout comes from each system's config.
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient creates a CDP delivery client.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

var _ CDPClient = (*HTTPClient)(nil)

// Deliver posts the payload to the system's endpoint. A non-2xx response is
// a *StatusError; transport failures come back wrapped as delivery errors.
func (c *HTTPClient) Deliver(ctx context.Context, system config.CDPSystemConfig, payload []byte) error {
	timeout := system.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, system.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to build request for %s: %w", apperrors.ErrDelivery, system.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if system.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+system.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request to %s failed: %w", apperrors.ErrDelivery, system.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			System:     system.Name,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
