// Package http is the fluent, retry-aware outgoing HTTP client. The wizard
// uses it to reach the edge proxy and the edge proxy uses it to reach the
// Cloudflare REST APIs.
//
//	resp, err := http.Post(ctx, base+"/api/llm").
//	    Bearer(token).
//	    Body(map[string]any{"prompt": p}).
//	    Timeout(10 * time.Second).
//	    Retry(3, 250*time.Millisecond).
//	    Send()
//	if err == nil {
//	    err = resp.Throw()
//	}
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	gohttp "net/http"
	"time"

	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/reqid"
)

// MaxResponseBytes caps how much of a response body is read into memory.
const MaxResponseBytes = 32 << 20

var defaultTransport = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        200,
	MaxIdleConnsPerHost: 100,
	IdleConnTimeout:     90 * time.Second,
}

// DefaultClient is shared by every outgoing request. Tests can swap its
// Transport and restore it with ResetTransport.
var DefaultClient = &gohttp.Client{Transport: defaultTransport}

// ResetTransport restores the production transport on DefaultClient.
func ResetTransport() {
	DefaultClient.Transport = defaultTransport
}

// StatusError is returned by Response.Throw for non-2xx answers.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("http: request failed with status %d: %s", e.StatusCode, body)
}

// ------------------- Request -------------------

// Request is a fluent HTTP request builder.
type Request struct {
	ctx       context.Context
	method    string
	url       string
	headers   map[string]string
	body      any
	timeout   time.Duration
	retries   int
	retryWait time.Duration
}

func Get(ctx context.Context, url string) *Request  { return newRequest(ctx, gohttp.MethodGet, url) }
func Post(ctx context.Context, url string) *Request { return newRequest(ctx, gohttp.MethodPost, url) }

func newRequest(ctx context.Context, method, url string) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	headers := map[string]string{"Accept": "application/json"}
	if id := reqid.FromCtx(ctx); id != "" {
		headers[reqid.Header] = id
	}
	return &Request{
		ctx:       ctx,
		method:    method,
		url:       url,
		headers:   headers,
		timeout:   30 * time.Second,
		retries:   1,
		retryWait: 500 * time.Millisecond,
	}
}

func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Bearer sets the Authorization: Bearer <token> header.
func (r *Request) Bearer(token string) *Request {
	return r.Header("Authorization", "Bearer "+token)
}

// Body sets the request body. Strings and byte slices are sent raw;
// anything else is marshalled to JSON.
func (r *Request) Body(v any) *Request {
	r.body = v
	return r
}

// Timeout bounds each attempt. The request context still applies.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry sets the total attempts (1 = no retry) and the initial backoff,
// which doubles per attempt. Only transport errors, 429 and 5xx retry.
func (r *Request) Retry(n int, wait time.Duration) *Request {
	if n < 1 {
		n = 1
	}
	r.retries = n
	r.retryWait = wait
	return r
}

// ------------------- Send -------------------

// Send executes the request. A non-2xx response is returned without error;
// call Throw to turn it into one.
func (r *Request) Send() (*Response, error) {
	var (
		resp    *Response
		lastErr error
	)
	wait := r.retryWait

	for attempt := 1; attempt <= r.retries; attempt++ {
		resp, lastErr = r.do()
		if lastErr == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}
		if attempt == r.retries {
			break
		}

		logger.WithCtx(r.ctx).Warn("http: request failed, retrying",
			"url", r.url, "attempt", attempt, "backoff", wait, "error", lastErr)

		select {
		case <-r.ctx.Done():
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, r.ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}

	if lastErr != nil {
		return nil, fmt.Errorf("http: all %d attempts failed for %s %s: %w", r.retries, r.method, r.url, lastErr)
	}
	return resp, nil
}

func retryable(status int) bool {
	return status == gohttp.StatusTooManyRequests || status >= 500
}

func (r *Request) do() (*Response, error) {
	body, ct, err := r.buildBody()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	if len(raw) > MaxResponseBytes {
		return nil, errors.New("http: response body too large")
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Raw: raw}, nil
}

func (r *Request) buildBody() (io.Reader, string, error) {
	switch v := r.body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return bytes.NewBufferString(v), "text/plain", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http: marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// ------------------- Response -------------------

type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON unmarshals the response body into dest.
func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

func (r *Response) Text() string { return string(r.Raw) }

func (r *Response) Header(key string) string { return r.Headers.Get(key) }

// Throw returns a *StatusError if the status is not 2xx.
func (r *Response) Throw() error {
	if !r.OK() {
		return &StatusError{StatusCode: r.StatusCode, Body: string(r.Raw)}
	}
	return nil
}
