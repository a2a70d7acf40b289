package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"deck-backend/internal/checkpoint"
	"deck-backend/internal/runs"
)

// Client talks to the deck API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient constructs a Client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response in the standard error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api status %d", e.Status)
	}
	return fmt.Sprintf("api status %d: %s: %s", e.Status, e.Code, e.Message)
}

// ListCheckpoints returns pending checkpoints, oldest first.
func (c *Client) ListCheckpoints(ctx context.Context) ([]checkpoint.Checkpoint, error) {
	var out struct {
		Items []checkpoint.Checkpoint `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/checkpoints", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ApproveCheckpoint approves id.
func (c *Client) ApproveCheckpoint(ctx context.Context, id string) (checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	err := c.do(ctx, http.MethodPost, "/api/v1/checkpoints/"+url.PathEscape(id)+"/approve", "", nil, &cp)
	return cp, err
}

// RejectCheckpoint rejects id with an optional reason.
func (c *Client) RejectCheckpoint(ctx context.Context, id, reason string) (checkpoint.Checkpoint, error) {
	body, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	var cp checkpoint.Checkpoint
	err = c.do(ctx, http.MethodPost, "/api/v1/checkpoints/"+url.PathEscape(id)+"/reject", "application/json", body, &cp)
	return cp, err
}

// ClearCheckpoints drops every in-memory checkpoint on the server and
// returns how many were still pending.
func (c *Client) ClearCheckpoints(ctx context.Context) (int, error) {
	var out struct {
		DroppedPending int `json:"droppedPending"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/v1/checkpoints", "", nil, &out)
	return out.DroppedPending, err
}

// StartRunOptions mirror the POST /runs query parameters.
type StartRunOptions struct {
	Autonomy string
	Validate *bool
	Refine   *bool
}

// StartRun submits a deck document.
func (c *Client) StartRun(ctx context.Context, deck []byte, contentType string, opts StartRunOptions) (runs.Run, error) {
	q := url.Values{}
	if opts.Autonomy != "" {
		q.Set("autonomy", opts.Autonomy)
	}
	if opts.Validate != nil {
		q.Set("validate", strconv.FormatBool(*opts.Validate))
	}
	if opts.Refine != nil {
		q.Set("refine", strconv.FormatBool(*opts.Refine))
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var run runs.Run
	err := c.do(ctx, http.MethodPost, path, contentType, deck, &run)
	return run, err
}

// GetRun fetches a run by id.
func (c *Client) GetRun(ctx context.Context, id string) (runs.Run, error) {
	var run runs.Run
	err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), "", nil, &run)
	return run, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
