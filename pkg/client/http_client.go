package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recoverly/followup-agent/pkg/circuitbreaker"
	"github.com/recoverly/followup-agent/pkg/metrics"
	"github.com/recoverly/followup-agent/pkg/retry"
)

// HTTPClient wraps http.Client with retry and circuit breaker
type HTTPClient struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	serviceName    string
}

// NewHTTPClient creates a new HTTP client with retry and circuit breaker
func NewHTTPClient(serviceName string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		serviceName:    serviceName,
	}
}

// Post performs a JSON POST request with retry and circuit breaker
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}, headers map[string]string) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, url, jsonData, headers)
}

// Get performs a GET request with retry and circuit breaker
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, nil, headers)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	start := time.Now()
	var resp *http.Response
	var err error

	// Execute with circuit breaker
	err = c.circuitBreaker.Execute(ctx, func() error {
		// Execute with retry
		err := retry.Do(ctx, retry.DefaultConfig(), func() error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}

			req, reqErr := http.NewRequestWithContext(ctx, method, url, reader)
			if reqErr != nil {
				return reqErr
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			for k, v := range headers {
				req.Header.Set(k, v)
			}

			resp, reqErr = c.client.Do(req)
			if reqErr != nil {
				return reqErr
			}

			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return fmt.Errorf("server error: %d", resp.StatusCode)
			}

			return nil
		})
		return err
	})

	latency := time.Since(start)
	success := err == nil && resp != nil && resp.StatusCode < 400

	// Record metrics
	metrics.RecordServiceCall(c.serviceName, success, latency)

	// Update circuit breaker state
	stateStr := "closed"
	switch c.circuitBreaker.GetState() {
	case circuitbreaker.StateOpen:
		stateStr = "open"
	case circuitbreaker.StateHalfOpen:
		stateStr = "half-open"
	}
	metrics.UpdateCircuitBreaker(c.serviceName, stateStr, int64(c.circuitBreaker.Failures()))

	return resp, err
}
