// Package client talks to a running voxbridge daemon.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"voxbridge/internal/history"
	"voxbridge/internal/pipeline"
)

const DefaultURL = "http://127.0.0.1:5555"

type Client struct {
	base string
	http *http.Client
}

// New returns a client for the daemon at baseURL. Requests carry no timeout
// of their own since a recording blocks for its full duration.
func New(baseURL string) *Client {
	return &Client{base: strings.TrimRight(baseURL, "/"), http: &http.Client{}}
}

type Health struct {
	Status string `json:"status"`
}

func (c *Client) Health(ctx context.Context) (Health, []byte, error) {
	var h Health
	raw, err := c.get(ctx, "/health", &h)
	return h, raw, err
}

func (c *Client) Record(ctx context.Context, seconds int) (pipeline.Result, []byte, error) {
	var res pipeline.Result
	raw, err := c.get(ctx, "/record/"+strconv.Itoa(seconds), &res)
	return res, raw, err
}

type HistoryPage struct {
	Success bool            `json:"success"`
	Items   []history.Entry `json:"items"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) History(ctx context.Context, limit int) (HistoryPage, []byte, error) {
	var page HistoryPage
	raw, err := c.get(ctx, "/history?limit="+url.QueryEscape(strconv.Itoa(limit)), &page)
	return page, raw, err
}

// get decodes the JSON body into v and also returns it verbatim.
func (c *Client) get(ctx context.Context, path string, v any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voxbridge not running: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return body, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return body, nil
}
