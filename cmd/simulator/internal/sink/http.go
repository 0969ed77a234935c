package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shubham-shewale/market-analytics/pkg/models"
)

const ingestPath = "/api/analytics/price"

// StatusError reports a non-2xx answer from the gateway.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d", e.Code)
}

// HTTPSink posts each record as JSON to the gateway's ingest endpoint.
type HTTPSink struct {
	client *http.Client
	url    string
}

func NewHTTPSink(gatewayURL string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(gatewayURL, "/") + ingestPath,
	}
}

func (h *HTTPSink) URL() string { return h.url }

func (h *HTTPSink) Send(ctx context.Context, rec models.AnalyticsRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
