// Package todoist implements a thin HTTP client for the Todoist REST and
// Sync APIs. Failures are reported as *capability.Error values so the tool
// runtime can fold them into structured capability results unchanged.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dbrain-dev/dbrain/internal/capability"
)

// maxResponseSize bounds API response reads (1 MiB).
const maxResponseSize = 1 << 20

// maxErrorBodyLen is the error-body excerpt length kept in error details.
const maxErrorBodyLen = 500

const defaultTimeout = 30 * time.Second

// Client talks to the Todoist API with bearer-token authentication.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Todoist client. The token may be empty; calls made
// without a token fail with a missing_credentials capability error before
// any network I/O. baseURL defaults to the public API host.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.todoist.com"
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Configured reports whether an API token is set.
func (c *Client) Configured() bool {
	return c.token != ""
}

// User is the normalized Todoist user profile.
type User struct {
	UserID string
	Email  string
	Name   string
}

// Task is one task creation request.
type Task struct {
	Content     string
	Description string
	Priority    int
	ProjectID   string
	DueString   string
}

// CreatedTask identifies a task created by AddTask.
type CreatedTask struct {
	ID      string
	Content string
}

// CompletedQuery filters CompletedTasks lookups. Zero values are omitted.
type CompletedQuery struct {
	Since string
	Until string
	Limit int
}

// CompletedTask is one normalized completed-task record.
type CompletedTask struct {
	ID          string
	Content     string
	CompletedAt string
}

// UserInfo fetches the current user profile via the sync API.
func (c *Client) UserInfo(ctx context.Context) (User, error) {
	form := url.Values{
		"sync_token":     {"*"},
		"resource_types": {`["user"]`},
	}
	var resp struct {
		User struct {
			ID       json.Number `json:"id"`
			Email    string      `json:"email"`
			FullName string      `json:"full_name"`
			Name     string      `json:"name"`
		} `json:"user"`
	}
	if err := c.postForm(ctx, "/sync/v9/sync", form, &resp); err != nil {
		return User{}, err
	}
	name := resp.User.FullName
	if name == "" {
		name = resp.User.Name
	}
	return User{
		UserID: resp.User.ID.String(),
		Email:  resp.User.Email,
		Name:   name,
	}, nil
}

// AddTask creates a single task via the REST API.
func (c *Client) AddTask(ctx context.Context, task Task) (CreatedTask, error) {
	body := map[string]any{"content": task.Content}
	if task.Description != "" {
		body["description"] = task.Description
	}
	if task.Priority != 0 {
		body["priority"] = task.Priority
	}
	if task.ProjectID != "" {
		body["project_id"] = task.ProjectID
	}
	if task.DueString != "" {
		body["due_string"] = task.DueString
	}

	var resp struct {
		ID      json.Number `json:"id"`
		Content string      `json:"content"`
	}
	if err := c.postJSON(ctx, "/rest/v2/tasks", body, &resp); err != nil {
		return CreatedTask{}, err
	}
	content := resp.Content
	if content == "" {
		content = task.Content
	}
	return CreatedTask{ID: resp.ID.String(), Content: content}, nil
}

// CompletedTasks looks up completed tasks via the sync API.
func (c *Client) CompletedTasks(ctx context.Context, q CompletedQuery) ([]CompletedTask, error) {
	form := url.Values{}
	if q.Since != "" {
		form.Set("since", q.Since)
	}
	if q.Until != "" {
		form.Set("until", q.Until)
	}
	if q.Limit > 0 {
		form.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp struct {
		Items []struct {
			TaskID      json.Number `json:"task_id"`
			ID          json.Number `json:"id"`
			Content     string      `json:"content"`
			CompletedAt string      `json:"completed_at"`
		} `json:"items"`
	}
	if err := c.postForm(ctx, "/sync/v9/completed/get_all", form, &resp); err != nil {
		return nil, err
	}

	tasks := make([]CompletedTask, 0, len(resp.Items))
	for _, item := range resp.Items {
		id := item.TaskID.String()
		if id == "" {
			id = item.ID.String()
		}
		tasks = append(tasks, CompletedTask{
			ID:          id,
			Content:     item.Content,
			CompletedAt: item.CompletedAt,
		})
	}
	return tasks, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("todoist: marshal request: %v", err), false)
	}
	return c.do(ctx, path, "application/json", bytes.NewReader(data), out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

// do sends an authenticated POST and decodes the JSON response into out.
// All failure modes map onto the todoist_* capability error codes.
func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	if c.token == "" {
		return capability.Errorf(capability.CodeMissingCredentials, "todoist API token is not configured", false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("todoist: create request: %v", err), false)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return capability.Errorf(capability.CodeTodoistTransportError, fmt.Sprintf("todoist: read response: %v", err), true)
	}

	if resp.StatusCode >= 400 {
		capErr := capability.Errorf(
			capability.CodeTodoistAPIError,
			fmt.Sprintf("todoist API error %d", resp.StatusCode),
			resp.StatusCode >= 500,
		)
		capErr.Details = map[string]any{
			"status": resp.StatusCode,
			"body":   truncate(string(raw), maxErrorBodyLen),
		}
		return capErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return capability.Errorf(capability.CodeTodoistInvalidJSON, "todoist response is not valid JSON", false)
	}
	return nil
}

// mapTransportError classifies a network-level failure: timeouts are
// retryable todoist_timeout, everything else a retryable transport error.
func mapTransportError(err error) *capability.Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return capability.Errorf(capability.CodeTodoistTimeout, "todoist request timed out", true)
	}
	return capability.Errorf(capability.CodeTodoistTransportError, fmt.Sprintf("todoist transport error: %v", err), true)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
