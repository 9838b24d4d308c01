package cli

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

	"github.com/ErlanBelekov/devlife/internal/domain"
)

var (
	ErrUnauthorized = errors.New("please authenticate with `devlife auth`")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx response other than 401 and 404.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Task struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Objective string            `json:"objective"`
	Tags      []string          `json:"tags"`
	Author    string            `json:"author"`
	Tests     *domain.TestSuite `json:"tests,omitempty"`
}

// Cases returns the task's test cases, or nil when the task carries none.
func (t Task) Cases() []domain.TestCase {
	if t.Tests == nil {
		return nil
	}
	return t.Tests.Data
}

// Client talks to the devlife API on behalf of the CLI.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// SignIn exchanges credentials for a fresh API token.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/cli-signin", body, &out); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return "", errors.New("invalid email or password")
		}
		return "", err
	}
	return out.Token, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/cli/task", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodGet, "/cli/task/"+url.PathEscape(id), nil, &out); err != nil {
		return Task{}, err
	}
	return out.Task, nil
}

// Submit records the outcome of a local run.
func (c *Client) Submit(ctx context.Context, taskID string, status domain.SubmissionStatus) error {
	body := map[string]string{"taskId": taskID, "status": string(status)}
	return c.do(ctx, http.MethodPost, "/cli/task", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		default:
			return &APIError{Status: resp.StatusCode, Message: e.Error}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
