// Package xray provides a client for the Jira + Xray test-management REST API:
// creating and updating Test issues, associating them with plans, executions,
// sets, repository folders and preconditions, and reading the associations
// back.
package xray

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tcsync/internal/resilience"
)

// Client defines the test-management operations used by the importer.
type Client interface {
	Create(ctx context.Context, fields IssueFields) (*IssueRef, error)
	Update(ctx context.Context, issueID string, fields IssueFields) (*IssueRef, error)
	LinkToPlan(ctx context.Context, planKey string, testIDs []string) (*LinkResult, error)
	LinkToExecution(ctx context.Context, execKey string, testIDs []string) (*LinkResult, error)
	LinkToSet(ctx context.Context, setKey string, testIDs []string) (*LinkResult, error)
	LinkToFolder(ctx context.Context, projectID, path string, testIDs []string) (*LinkResult, error)
	LinkPreconditions(ctx context.Context, testID string, preconditionIDs []string) (*LinkResult, error)
	FetchLinks(ctx context.Context, testID string) (*TestLinks, error)
}

// IssueFields is the content of a Test issue.
type IssueFields struct {
	ProjectKey  string
	Summary     string
	Description string
	Priority    string
	Labels      []string
	TestType    string
	Steps       []Step
}

// Step is one manual test step.
type Step struct {
	Action string `json:"action"`
	Data   string `json:"data,omitempty"`
	Result string `json:"result,omitempty"`
}

// IssueRef identifies an issue by numeric id and human key.
type IssueRef struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// LinkResult is the outcome of an association call. AddedCount may be zero
// when every entity was already associated.
type LinkResult struct {
	AddedCount int
	Warnings   []string
}

// TestLinks is the association state of one test as reported by the server.
type TestLinks struct {
	Plans         []string `json:"testPlans"`
	Executions    []string `json:"testExecutions"`
	Sets          []string `json:"testSets"`
	Preconditions []string `json:"preconditions"`
	Folder        *string  `json:"folder"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return strings.Join(e.Messages, "; ")
}

// ErrorMessage is the text recorded for a failed call: the server's messages
// when the failure is an APIError, otherwise the full error chain.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry enables retries of transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker fails calls fast after repeated transient failures.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) {
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a client for the server at baseURL authenticated with a
// personal access token. By default no retries are made.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.NoRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call sends one logical request through the breaker and retry policy.
func (c *httpClient) call(ctx context.Context, method, path string, body, out any) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
			return c.send(ctx, method, path, body, out)
		})
	})
}

func (c *httpClient) send(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "xray: rate limit")
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "xray: marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrap(err, "xray: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "xray: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, data)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "xray: unmarshal response")
	}
	return nil
}

// parseAPIError extracts Jira-style errorMessages/errors from a response body.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
		Message       string            `json:"message"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) < 500 {
			apiErr.Messages = []string{text}
		}
		return apiErr
	}

	apiErr.Messages = append(apiErr.Messages, payload.ErrorMessages...)
	keys := make([]string, 0, len(payload.Errors))
	for k := range payload.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		apiErr.Messages = append(apiErr.Messages, fmt.Sprintf("%s: %s", k, payload.Errors[k]))
	}
	if payload.Message != "" {
		apiErr.Messages = append(apiErr.Messages, payload.Message)
	}
	return apiErr
}

func escape(s string) string {
	return url.PathEscape(s)
}
