// Package initiator starts compensating pipeline runs.
package initiator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/djlord-it/misfire-guard/internal/domain"
)

const defaultRequestTimeout = 30 * time.Second

// Client dispatches trigger requests to the initiation service over HTTP.
// Dispatch is fire-and-forget: the initiator owns retries and failure
// handling, this client only reports whether the request was accepted.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewClient creates an initiator client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: defaultRequestTimeout,
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

type triggerRequest struct {
	PipelineID  string `json:"pipeline_id"`
	Application string `json:"application"`
	Source      string `json:"source"`
}

// Initiate requests a run of the given pipeline.
func (c *Client) Initiate(ctx context.Context, pipeline domain.Pipeline) error {
	body, err := json.Marshal(triggerRequest{
		PipelineID:  pipeline.ID.String(),
		Application: pipeline.Application,
		Source:      "misfireguard",
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/pipelines/" + pipeline.ID.String() + "/trigger"
	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
