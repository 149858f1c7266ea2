// Package client talks to a running vitalsd over HTTP.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/psantana5/vitals-engine/pkg/api"
	"github.com/psantana5/vitals-engine/pkg/models"
)

// Options tunes the underlying HTTP clients
type Options struct {
	// Timeout bounds read-only calls
	Timeout time.Duration
	// ProcessTimeout bounds POST /process-video, which waits for the job; zero disables it
	ProcessTimeout time.Duration
	Retries        int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
	TLS            *tls.Config
}

// DefaultOptions returns the options used by vitalsctl
func DefaultOptions() Options {
	return Options{
		Timeout:        10 * time.Second,
		ProcessTimeout: 0,
		Retries:        3,
		RetryWait:      500 * time.Millisecond,
		RetryMaxWait:   5 * time.Second,
	}
}

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Body       api.ErrorResponse
}

func (e *APIError) Error() string {
	msg := e.Body.Error
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Body.Message != "" {
		return fmt.Sprintf("server returned %d: %s (%s)", e.StatusCode, msg, e.Body.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, msg)
}

// IsBusy reports whether err is the server rejecting work because a job is running
func IsBusy(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Client wraps the vitalsd HTTP API.
// Reads go through a retrying client; submissions are never retried so a
// video is not processed twice.
type Client struct {
	query  *resty.Client
	submit *resty.Client
}

// New creates a client for baseURL, e.g. http://localhost:8080
func New(baseURL string, opts Options) *Client {
	query := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		})

	submit := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.ProcessTimeout).
		SetHeader("Accept", "application/json")

	if opts.TLS != nil {
		query.SetTLSClientConfig(opts.TLS)
		submit.SetTLSClientConfig(opts.TLS)
	}

	return &Client{query: query, submit: submit}
}

// Status fetches GET /status
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	return do[api.StatusResponse](ctx, c.query, http.MethodGet, "/status", nil)
}

// Latest fetches GET /live. ok is false while the server has no reading yet.
func (c *Client) Latest(ctx context.Context) (reading *models.Reading, ok bool, err error) {
	resp, err := c.query.R().SetContext(ctx).Get("/live")
	if err != nil {
		return nil, false, fmt.Errorf("GET /live: %w", err)
	}
	if resp.IsError() {
		return nil, false, decodeError(resp)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &probe); err != nil {
		return nil, false, fmt.Errorf("failed to decode /live response: %w", err)
	}
	if _, found := probe["timestamp_ms"]; !found {
		return nil, false, nil
	}

	reading = &models.Reading{}
	if err := json.Unmarshal(resp.Body(), reading); err != nil {
		return nil, false, fmt.Errorf("failed to decode reading: %w", err)
	}
	return reading, true, nil
}

// Process uploads a video and waits for its summary
func (c *Client) Process(ctx context.Context, video io.Reader) (*api.ProcessResponse, error) {
	return do[api.ProcessResponse](ctx, c.submit, http.MethodPost, "/process-video", video)
}

// Upload stores a video without processing it
func (c *Client) Upload(ctx context.Context, video io.Reader) (*api.UploadResponse, error) {
	return do[api.UploadResponse](ctx, c.submit, http.MethodPost, "/upload", video)
}

// Run starts a background job against the stored video or the camera
func (c *Client) Run(ctx context.Context) (*api.RunResponse, error) {
	return do[api.RunResponse](ctx, c.submit, http.MethodPost, "/run", nil)
}

// Health returns nil when GET /health answers 200
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.query.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("GET /health: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode()}
	}
	return nil
}

func do[T any](ctx context.Context, rc *resty.Client, method, path string, body io.Reader) (*T, error) {
	var out T
	req := rc.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body).SetHeader("Content-Type", "application/octet-stream")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return &out, nil
}

func decodeError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	// non-JSON bodies (e.g. the router's 404) leave Body empty
	_ = json.Unmarshal(resp.Body(), &apiErr.Body)
	return apiErr
}
