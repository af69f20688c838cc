// Package client talks to a running flights server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreamware/flights/internal/segment"
)

// APIError is an error envelope returned by the server
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flights: http %d: %s", e.Status, e.Message)
}

// Client sends legs to one server
type Client struct {
	base       string
	httpClient *http.Client
}

// New returns a client for the server at base, e.g. "http://127.0.0.1:8080"
func New(base string) *Client {
	return &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Consolidate encodes legs and sends them to database/key
func (c *Client) Consolidate(ctx context.Context, database, key string, legs segment.List) (segment.List, error) {
	body, err := segment.Encode(legs)
	if err != nil {
		return nil, err
	}
	return c.PutRaw(ctx, database, key, body)
}

// PutRaw sends body unchanged to database/key and decodes the result
func (c *Client) PutRaw(ctx context.Context, database, key string, body []byte) (segment.List, error) {
	u := fmt.Sprintf("%s/api/%s/%s", c.base, url.PathEscape(database), url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, data)
	}

	var out struct {
		Result segment.List `json:"result"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Result == nil {
		out.Result = segment.List{}
	}
	return out.Result, nil
}

// Health returns the decoded /health document
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, data)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func decodeError(status int, data []byte) error {
	var env struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Message == "" {
		return &APIError{Status: status, Code: -status, Message: strings.TrimSpace(string(data))}
	}
	env.Error.Status = status
	return &env.Error
}
