// Package workerclient calls the assignment API exposed by crawl workers.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

// DefaultTimeout bounds every call when no http.Client is supplied.
const DefaultTimeout = 5 * time.Second

// AssignmentsPayload is the body of PUT /assignments and GET /assignments.
type AssignmentsPayload struct {
	Assignments []string `json:"assignments"`
}

// StatusPayload is the acknowledgement returned by mutating calls.
type StatusPayload struct {
	Status string `json:"status"`
}

// Client implements crawler.WorkerClient over HTTP+JSON.
type Client struct {
	http *http.Client
}

// New builds a Client. A nil httpClient gets DefaultTimeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{http: httpClient}
}

// SendHeartBeat posts to /heartbeat. Any transport error or non-2xx status
// is returned as an error.
func (c *Client) SendHeartBeat(ctx context.Context, w crawler.Worker) error {
	return c.do(ctx, http.MethodPost, w, "/heartbeat", nil, nil)
}

// ClearAssignments deletes every assignment on the worker.
func (c *Client) ClearAssignments(ctx context.Context, w crawler.Worker) error {
	return c.do(ctx, http.MethodDelete, w, "/assignments", nil, nil)
}

// AddAssignments pushes the queue URLs of tasks to the worker.
func (c *Client) AddAssignments(ctx context.Context, w crawler.Worker, tasks []crawler.Task) error {
	body := AssignmentsPayload{Assignments: crawler.QueueURLs(tasks)}
	return c.do(ctx, http.MethodPut, w, "/assignments", body, nil)
}

// Assignments fetches the queues the worker currently holds.
func (c *Client) Assignments(ctx context.Context, w crawler.Worker) ([]string, error) {
	var out AssignmentsPayload
	if err := c.do(ctx, http.MethodGet, w, "/assignments", nil, &out); err != nil {
		return nil, err
	}
	return out.Assignments, nil
}

func (c *Client) do(ctx context.Context, method string, w crawler.Worker, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	url := strings.TrimRight(w.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s on worker %s: %w", method, path, w.ID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s on worker %s: status %d %s: %w",
			method, path, w.ID, resp.StatusCode, strings.TrimSpace(string(msg)), crawler.ErrWorkerRejected)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
