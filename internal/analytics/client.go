// Package analytics is the HTTP client for the remote customer analytics
// service. All requests and responses are JSON.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public deployment of the analytics service.
const DefaultBaseURL = "https://customer-analytics-and-churn-prediction-t7i4.onrender.com"

// Endpoint paths.
const (
	PathFeatures = "/segmentation/features"
	PathKMeans   = "/segmentation/kmeans"
	PathDBSCAN   = "/segmentation/dbscan"
	PathBoxplot  = "/segmentation/boxplot"
)

// maxBody caps how much of a response is read. Boxplots are a few hundred KB.
const maxBody = 16 << 20

// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
var ErrMalformedResponse = errors.New("invalid response from analytics service")

// APIError is a non-2xx response. Detail holds the service's "detail" field
// when one was sent.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

// ErrorMessage turns any client error into the text shown to the user.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if errors.Is(err, ErrMalformedResponse) {
		return ErrMalformedResponse.Error()
	}
	return "Network Error"
}

// Client talks to the analytics service. Safe for concurrent use.
// There are no automatic retries: a failed call is reported once.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for baseURL. A non-positive rps disables pacing.
func NewClient(baseURL string, timeout time.Duration, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 4),
	}
}

// BaseURL returns the service root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Features loads the selectable feature catalog.
func (c *Client) Features(ctx context.Context) ([]Feature, error) {
	var resp featuresResponse
	if err := c.do(ctx, http.MethodGet, PathFeatures, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Features, nil
}

// KMeans runs K-Means clustering on the service.
func (c *Client) KMeans(ctx context.Context, req KMeansRequest) (*ClusterResponse, error) {
	var resp ClusterResponse
	if err := c.do(ctx, http.MethodPost, PathKMeans, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DBSCAN runs DBSCAN clustering on the service.
func (c *Client) DBSCAN(ctx context.Context, req DBSCANRequest) (*ClusterResponse, error) {
	var resp ClusterResponse
	if err := c.do(ctx, http.MethodPost, PathDBSCAN, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Boxplot fetches a per-cluster boxplot of one feature.
func (c *Client) Boxplot(ctx context.Context, req BoxplotRequest) (*BoxplotResponse, error) {
	var resp BoxplotResponse
	if err := c.do(ctx, http.MethodPost, PathBoxplot, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends one request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("analytics: rate limiter wait failed: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("analytics: failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("analytics: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("analytics: request cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("analytics: %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("analytics: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: extractDetail(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

// extractDetail pulls a readable message out of an error body. FastAPI sends
// either {"detail": "text"} or, for validation failures,
// {"detail": [{"loc": [...], "msg": "text", ...}, ...]}.
func extractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		var msgs []string
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
