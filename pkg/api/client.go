// Package api implements the shared request pipeline for the Databyte
// backend. Every call flows through it for credential injection, deadline
// enforcement, and error normalization.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ayorinde-Codes/databyte-go/pkg/store"
)

// DefaultTimeout bounds every request unless the caller's context carries
// an earlier deadline.
const DefaultTimeout = 30 * time.Second

// Options controls how the client is constructed.
type Options struct {
	BaseURL    string        // e.g. "https://api.databyte.example"
	Timeout    time.Duration // per-request deadline (default: DefaultTimeout)
	HTTPClient *http.Client  // underlying transport (default: fresh http.Client)
}

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string
	Body   any         // marshalled as JSON when non-nil
	Header http.Header // extra headers, merged over the defaults
	NoAuth bool        // skip the bearer header (auth is the default)
}

// Envelope is the backend's uniform response shape. On success it is passed
// through to the caller unmodified.
type Envelope struct {
	Status  bool                `json:"status"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Decode unmarshals the envelope's data payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return errors.New("api: envelope has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("api: decode data: %w", err)
	}
	return nil
}

// Client is the shared request pipeline. It reads the bearer token from the
// session store, never writes session content, but clears the store and
// notifies subscribers when the backend answers 401.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	store   store.SessionStore

	mu          sync.Mutex
	subscribers map[int]func()
	nextSubID   int
}

// New creates a client over the given session store.
func New(opts Options, st store.SessionStore) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		timeout:     timeout,
		http:        httpClient,
		store:       st,
		subscribers: make(map[int]func()),
	}
}

// OnUnauthorized registers fn to run whenever any request receives HTTP 401.
// The returned cancel function removes the subscription. Subscribers run
// synchronously on the goroutine that hit the 401.
func (c *Client) OnUnauthorized(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Client) notifyUnauthorized() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Get issues a GET request through the pipeline.
func (c *Client) Get(ctx context.Context, path string) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST request through the pipeline.
func (c *Client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request through the pipeline.
func (c *Client) Put(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request through the pipeline.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request through the pipeline.
func (c *Client) Delete(ctx context.Context, path string) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Do executes one request and returns either the decoded success envelope
// or one of the tagged error variants from errors.go. It never retries;
// retry policy, if any, belongs to the caller.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("api: marshal body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	// A missing token is not an error here; the request goes out
	// unauthenticated and the server rejects it.
	if !req.NoAuth {
		if token := c.store.Get(store.KeyAuthToken, ""); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Debug("api request timed out", "method", req.Method, "path", req.Path, "request_id", requestID)
			return nil, &TimeoutError{Err: err}
		}
		slog.Debug("api request failed", "method", req.Method, "path", req.Path, "request_id", requestID, "err", err)
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	env := decodeBody(resp)
	slog.Debug("api request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return env, nil
	}

	message := env.Message
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		c.invalidateSession()
		return nil, &UnauthorizedError{Message: message}
	case http.StatusUnprocessableEntity:
		return nil, &ValidationError{Message: message, Fields: env.Errors, Data: env.Data}
	default:
		return nil, &HTTPError{Code: resp.StatusCode, Message: message, Fields: env.Errors}
	}
}

// invalidateSession clears the persisted session and broadcasts the
// unauthorized signal. Safe to run from concurrent 401s: clearing an
// already-cleared store and re-notifying are both no-ops for subscribers
// that already reacted.
func (c *Client) invalidateSession() {
	if err := c.store.Clear(); err != nil {
		slog.Error("clear session after 401", "err", err)
	}
	c.notifyUnauthorized()
}

// decodeBody parses the response according to its declared content type.
// Non-JSON bodies (proxy error pages, HTML) become message-only envelopes
// so they never crash the pipeline.
func decodeBody(resp *http.Response) *Envelope {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Envelope{Status: false, Message: http.StatusText(resp.StatusCode)}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		env := &Envelope{}
		if err := json.Unmarshal(raw, env); err == nil {
			return env
		}
	}

	message := strings.TrimSpace(string(raw))
	if message == "" || len(message) > 512 {
		message = http.StatusText(resp.StatusCode)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	return &Envelope{Status: ok, Message: message}
}
