package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tereo-quiz-service/internal/domain"
)

// Client reports missed items to a remote mistake collector over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the collector at baseURL; timeout bounds each call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ReportMistakes posts the report to {baseURL}/quiz_result.
func (c *Client) ReportMistakes(ctx context.Context, report domain.MistakeReport) error {
	if report.MissedIDs == nil {
		report.MissedIDs = []string{}
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quiz_result", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post quiz result: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post quiz result: unexpected status %d", resp.StatusCode)
	}
	return nil
}
