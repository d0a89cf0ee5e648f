// Package apiclient is a thin client for the foundation's remote REST API.
//
// The client holds no session state: every authenticated call takes the
// bearer token explicitly. Responses with status 401 whose message reports a
// deleted account surface as ErrAccountGone; clearing the session is left to
// the caller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skwf/portal/internal/logger"
)

const (
	// DefaultBaseURL is the API address used when none is configured.
	DefaultBaseURL = "http://localhost:4000"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 32 << 20
)

// Recorder observes completed API calls. Status is 0 when the request failed
// before a response arrived.
type Recorder interface {
	ObserveAPICall(endpoint string, status int, elapsed time.Duration)
}

// Client calls the remote API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	recorder   Recorder
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder reports every call to r.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New returns a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger.Discard(),
		userAgent:  "skwf-portal",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured API address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one API call.
type request struct {
	// name identifies the endpoint in logs and metrics, e.g. "auth.login".
	name     string
	method   string
	path     string
	query    url.Values
	token    string
	json     any
	form     *form
	fallback string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// buildURL joins the base URL and an already escaped path.
func (c *Client) buildURL(path string, query url.Values) string {
	s := c.baseURL.String() + path
	if len(query) > 0 {
		s += "?" + query.Encode()
	}
	return s
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.form != nil:
		buf, ct, err := r.form.encode()
		if err != nil {
			return nil, fmt.Errorf("%s: encoding form: %w", r.name, err)
		}
		body, contentType = buf, ct
	case r.json != nil:
		data, err := json.Marshal(r.json)
		if err != nil {
			return nil, fmt.Errorf("%s: marshaling request body: %w", r.name, err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.buildURL(r.path, r.query), body)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", r.name, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(r.name, 0, time.Since(start))
		c.logger.Debug("api request failed", "endpoint", r.name, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%s: %w", r.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.observe(r.name, resp.StatusCode, elapsed)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", r.name, err)
	}
	c.logger.Debug("api request",
		"endpoint", r.name,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", elapsed,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(r, resp.StatusCode, data)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) statusError(r request, status int, body []byte) error {
	var payload struct {
		Message        string `json:"message"`
		Error          string `json:"error"`
		PaymentPending bool   `json:"paymentPending"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	apiErr := newError(status, msg, r.fallback, payload.PaymentPending)
	if apiErr.kind == ErrAccountGone {
		c.logger.Warn("account no longer exists", "endpoint", r.name)
	}
	return apiErr
}

func (c *Client) observe(name string, status int, elapsed time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveAPICall(name, status, elapsed)
	}
}

// call performs r and decodes the response into out. When keys are given,
// out is decoded from the first key present in the response object.
func (c *Client) call(ctx context.Context, r request, out any, keys ...string) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := decodeInto(resp.body, out, keys...); err != nil {
		return fmt.Errorf("%s: decoding response: %w", r.name, err)
	}
	return nil
}

func decodeInto(body []byte, out any, keys ...string) error {
	if len(keys) == 0 {
		return json.Unmarshal(body, out)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return err
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		return json.Unmarshal(v, out)
	}
	// Some endpoints return the entity itself rather than wrapping it.
	if _, ok := obj["_id"]; ok {
		return json.Unmarshal(body, out)
	}
	return nil
}

func listQuery(opts ListOptions) url.Values {
	q := url.Values{}
	page, limit := opts.Page, opts.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	return q
}

type statusBody struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes,omitempty"`
}
