package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/djlord-it/misfire-guard/internal/circuitbreaker"
	"github.com/djlord-it/misfire-guard/internal/domain"
)

const defaultRequestTimeout = 30 * time.Second

// Client queries the execution-history service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
}

// NewClient creates a history client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: defaultRequestTimeout,
	}
}

// WithBreaker guards calls with the given circuit breaker.
func (c *Client) WithBreaker(cb *circuitbreaker.CircuitBreaker) *Client {
	c.breaker = cb
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

type latestExecutionsRequest struct {
	PipelineIDs []string `json:"pipeline_ids"`
	Count       int      `json:"count"`
}

type executionRecordPayload struct {
	PipelineID string     `json:"pipeline_id"`
	StartTime  *time.Time `json:"start_time"`
}

// LatestExecutions implements Service.
// POSTs the batch of IDs to /executions/latest and decodes one record per
// pipeline that has history; pipelines without history are simply absent.
func (c *Client) LatestExecutions(ctx context.Context, pipelineIDs []string, count int) ([]domain.ExecutionRecord, error) {
	url := c.baseURL + "/executions/latest"

	if c.breaker != nil {
		if err := c.breaker.Allow(url); err != nil {
			return nil, err
		}
	}

	records, err := c.post(ctx, url, latestExecutionsRequest{PipelineIDs: pipelineIDs, Count: count})
	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure(url)
		} else {
			c.breaker.RecordSuccess(url)
		}
	}
	return records, err
}

func (c *Client) post(ctx context.Context, url string, reqBody latestExecutionsRequest) ([]domain.ExecutionRecord, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload []executionRecordPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	records := make([]domain.ExecutionRecord, 0, len(payload))
	for _, p := range payload {
		records = append(records, domain.ExecutionRecord{
			PipelineID: p.PipelineID,
			StartTime:  p.StartTime,
		})
	}
	return records, nil
}
