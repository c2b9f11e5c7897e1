package httpapi

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

	"github.com/roach88/webstorage/internal/transport"
)

// DefaultTimeout bounds a single HTTP call.
const DefaultTimeout = 30 * time.Second

// APIError reports a reply other than 200 OK.
type APIError struct {
	Path       string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: HTTP %d %s: %s", e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Path, e.StatusCode, e.Message)
}

// IsAPIError returns true if err is an *APIError.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// Client implements transport.Transport against a Server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ transport.Transport = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client.
// Default: an *http.Client with DefaultTimeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCategory implements transport.Transport.
func (c *Client) RegisterCategory(ctx context.Context, req transport.CategoryRequest) (transport.CategoryResponse, error) {
	var resp transport.CategoryResponse
	err := c.post(ctx, PathRegisterCategory, req, &resp)
	return resp, err
}

// PrepareStatement implements transport.Transport.
func (c *Client) PrepareStatement(ctx context.Context, req transport.PrepareRequest) (transport.PrepareResponse, error) {
	var resp transport.PrepareResponse
	err := c.post(ctx, PathPrepareStatement, req, &resp)
	return resp, err
}

// Execute implements transport.Transport.
func (c *Client) Execute(ctx context.Context, req transport.ExecuteRequest) (transport.WriteResponse, error) {
	var resp transport.WriteResponse
	err := c.post(ctx, PathWriteExecute, req, &resp)
	return resp, err
}

// ExecuteQuery implements transport.Transport.
func (c *Client) ExecuteQuery(ctx context.Context, req transport.ExecuteRequest) (transport.QueryResponse, error) {
	var resp transport.QueryResponse
	err := c.post(ctx, PathQueryExecute, req, &resp)
	return resp, err
}

// GetMore implements transport.Transport.
func (c *Client) GetMore(ctx context.Context, req transport.GetMoreRequest) (transport.QueryResponse, error) {
	var resp transport.QueryResponse
	err := c.post(ctx, PathGetMore, req, &resp)
	return resp, err
}

// Ping returns the server token of the endpoint.
func (c *Client) Ping(ctx context.Context) (PingResponse, error) {
	var resp PingResponse
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathPing, nil)
	if err != nil {
		return resp, fmt.Errorf("create request: %w", err)
	}
	err = c.do(httpReq, PathPing, &resp)
	return resp, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Path: path, StatusCode: resp.StatusCode, Message: resp.Status}
		var body ErrorResponse
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes)); err == nil && json.Unmarshal(raw, &body) == nil && body.Error != "" {
			apiErr.Code = body.Code
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
