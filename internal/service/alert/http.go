package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"analytics/internal/dto"
)

// HTTPSink posts alerts as JSON to {baseURL}/alerts.
type HTTPSink struct {
	url    string
	client *http.Client
}

func NewHTTPSink(baseURL string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		url:    strings.TrimRight(baseURL, "/") + "/alerts",
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Name() string { return "http" }

// Send succeeds only on 200 or 201.
func (s *HTTPSink) Send(ctx context.Context, alert dto.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
