// Package client is a Go client for the snippethub HTTP API.
//
// Responses decode into the same types the server encodes, so a field added
// on one side shows up on the other.
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

	"github.com/sakif/snippethub/internal/auth"
	"github.com/sakif/snippethub/internal/executor"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/search"
	"github.com/sakif/snippethub/internal/service"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Code is the machine-readable "error"
// field of the body, e.g. "not_found".
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Code)
}

// Client talks to one snippethub server.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken authenticates every request with a session token, the value of
// the cookie the server sets after GitHub sign-in.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search fetches one page of results for the given state.
func (c *Client) Search(ctx context.Context, state search.State) (*service.SearchResult, error) {
	path := "/api/snippets"
	if q := state.Encode(); q != "" {
		path += "?" + q
	}
	var res service.SearchResult
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Latest(ctx context.Context, limit int) ([]service.SnippetView, error) {
	var res []service.SnippetView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/snippets/latest?limit=%d", limit), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Snippet(ctx context.Context, slug string) (*service.SnippetView, error) {
	var res service.SnippetView
	if err := c.do(ctx, http.MethodGet, "/api/snippets/"+url.PathEscape(slug), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreateSnippet(ctx context.Context, in service.SnippetInput) (*model.Snippet, error) {
	var res model.Snippet
	if err := c.do(ctx, http.MethodPost, "/api/snippets", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Vote clicks the up or down button on a snippet.
func (c *Client) Vote(ctx context.Context, slug string, dir model.Direction) (*service.VoteResult, error) {
	var res service.VoteResult
	body := map[string]string{"direction": string(dir)}
	if err := c.do(ctx, http.MethodPost, "/api/snippets/"+url.PathEscape(slug)+"/vote", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Votes(ctx context.Context, slug string) (*model.VoteSummary, error) {
	var res model.VoteSummary
	if err := c.do(ctx, http.MethodGet, "/api/snippets/"+url.PathEscape(slug)+"/votes", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Comments(ctx context.Context, slug string) ([]model.CommentThread, error) {
	var res []model.CommentThread
	if err := c.do(ctx, http.MethodGet, "/api/snippets/"+url.PathEscape(slug)+"/comments", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Run(ctx context.Context, slug string) (*executor.ExecutionResult, error) {
	var res executor.ExecutionResult
	if err := c.do(ctx, http.MethodPost, "/api/snippets/"+url.PathEscape(slug)+"/run", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: c.token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Field   string `json:"field"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e) == nil && e.Error != "" {
			apiErr.Code, apiErr.Message, apiErr.Field = e.Error, e.Message, e.Field
		}
		return apiErr
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("client: decoding %s response: %w", path, err)
	}
	return nil
}
