// Package remote talks to the scheduler's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestOptions describes one API call.
type RequestOptions struct {
	Method string
	Query  url.Values
	// Body is encoded as JSON. Ignored when RawBody is set.
	Body        any
	RawBody     io.Reader
	ContentType string
	// AllowUnauthorized turns a 401 into a JSON null result instead of an error.
	AllowUnauthorized bool
}

// Requester performs API calls and returns the raw JSON response.
type Requester interface {
	Request(ctx context.Context, endpoint string, opts RequestOptions) (json.RawMessage, error)
}

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap maps statuses onto the local store's errors so callers can branch the
// same way for both backends.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return db.ErrNotFound
	case http.StatusConflict:
		return db.ErrConstraintViolation
	default:
		return nil
	}
}

// ServerError reports a 5xx status.
func (e *HTTPError) ServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// Client is the HTTP implementation of Requester.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPClient
}

// NewClient creates a new Client. A nil client gets an *http.Client with timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, client HTTPClient) *Client {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Request sends the call and returns the response body. An empty body or a
// tolerated 401 yields JSON null.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	body := opts.RawBody
	contentType := opts.ContentType
	if body == nil && opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		logger.Log.Debug("Remote request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("read response body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && opts.AllowUnauthorized:
		return json.RawMessage("null"), nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	case len(bytes.TrimSpace(data)) == 0:
		return json.RawMessage("null"), nil
	default:
		return json.RawMessage(data), nil
	}
}
