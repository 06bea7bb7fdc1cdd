// Package guillotine is the HTTP client for the graph API. It issues one
// POST per query and maps every failure path into a uniform {code, message}
// shape so callers never branch on transport internals.
package guillotine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	eventbus "github.com/pagegraph/pagegraph/internal/eventbus"
	events "github.com/pagegraph/pagegraph/internal/events"
)

// CodeAPI marks transport-level failures (connection refused, timeout,
// unreadable body). HTTP failures carry the numeric status as their code.
const CodeAPI = "API"

// APIError is the uniform failure shape of the graph API boundary.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("guillotine %s: %s", e.Code, e.Message) }

// NewAPIError builds an APIError with a formatted message.
func NewAPIError(code, format string, args ...any) *APIError {
	return &APIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Request is the POST body of a graph API call.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Client issues graph API calls against one endpoint.
type Client struct {
	endpoint  string
	http      *http.Client
	metaQuery string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithMetaQuery overrides the metadata query, e.g. to request an extended
// component fragment.
func WithMetaQuery(q string) Option { return func(c *Client) { c.metaQuery = q } }

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:  endpoint,
		http:      http.DefaultClient,
		metaQuery: MetaQuery,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured graph API endpoint.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch posts one query and returns the parsed response body. All failures
// come back as *APIError: transport errors under CodeAPI, non-2xx responses
// under their status code with the body text as message, unparseable or
// empty bodies under "500".
func (c *Client) Fetch(ctx context.Context, req Request) (map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewAPIError(CodeAPI, "encode request: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewAPIError(CodeAPI, "build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	eventbus.Publish(ctx, events.GuillotineStart{Endpoint: c.endpoint, QuerySize: len(req.Query)})
	status := 0
	var callErr error
	defer func() {
		eventbus.Publish(ctx, events.GuillotineFinish{
			Endpoint: c.endpoint,
			Status:   status,
			Err:      callErr,
			Duration: time.Since(start),
		})
	}()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		callErr = NewAPIError(CodeAPI, "%v", err)
		return nil, callErr
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		callErr = NewAPIError(CodeAPI, "read response: %v", err)
		return nil, callErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		callErr = &APIError{Code: strconv.Itoa(resp.StatusCode), Message: string(raw)}
		return nil, callErr
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		callErr = NewAPIError("500", "unparseable response: %v: %s", err, raw)
		return nil, callErr
	}
	if len(parsed) == 0 {
		callErr = NewAPIError("500", "empty response body")
		return nil, callErr
	}
	return parsed, nil
}
