// Package http is the outgoing client for third-party APIs (the payment
// processor). Requests are built fluently and retried with exponential
// backoff on transport errors, 429 and 5xx:
//
//	resp, err := http.Post(config.PaymentAPIURL() + "/v1/payment_intents").
//	    WithContext(ctx).
//	    Bearer(config.PaymentSecretKey()).
//	    IdempotencyKey(key).
//	    Form(url.Values{"amount": {"925000"}, "currency": {"pkr"}}).
//	    Retry(3, 200*time.Millisecond).
//	    Send()
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

var defaultTransport gohttp.RoundTripper = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        50,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// DefaultClient carries every outgoing request. Tests swap its Transport
// (testkit.MockTransport) and put it back with ResetTransport.
var DefaultClient = &gohttp.Client{Transport: defaultTransport}

func ResetTransport() { DefaultClient.Transport = defaultTransport }

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Request is built with Get/Post and sent with Send.
type Request struct {
	ctx         context.Context
	method      string
	url         string
	header      gohttp.Header
	body        []byte
	contentType string
	buildErr    error
	timeout     time.Duration
	attempts    int
	backoff     time.Duration
}

func Get(target string) *Request  { return newRequest(gohttp.MethodGet, target) }
func Post(target string) *Request { return newRequest(gohttp.MethodPost, target) }

func newRequest(method, target string) *Request {
	h := gohttp.Header{}
	h.Set("Accept", "application/json")
	return &Request{
		ctx:      context.Background(),
		method:   method,
		url:      target,
		header:   h,
		timeout:  30 * time.Second,
		attempts: 1,
		backoff:  500 * time.Millisecond,
	}
}

func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

func (r *Request) Header(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

func (r *Request) Bearer(token string) *Request {
	return r.Header("Authorization", "Bearer "+token)
}

// IdempotencyKey is sent on every attempt, so a retried POST cannot create
// a second object on the remote side.
func (r *Request) IdempotencyKey(key string) *Request {
	return r.Header("Idempotency-Key", key)
}

// JSON sends v as the JSON body.
func (r *Request) JSON(v any) *Request {
	b, err := json.Marshal(v)
	if err != nil {
		r.buildErr = fmt.Errorf("http: marshal body: %w", err)
		return r
	}
	r.body, r.contentType = b, "application/json"
	return r
}

// Form sends values url-encoded.
func (r *Request) Form(values url.Values) *Request {
	r.body, r.contentType = []byte(values.Encode()), "application/x-www-form-urlencoded"
	return r
}

// Timeout bounds each attempt.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry sets the total number of attempts and the first backoff, which
// doubles after every failed attempt.
func (r *Request) Retry(attempts int, backoff time.Duration) *Request {
	if attempts < 1 {
		attempts = 1
	}
	r.attempts, r.backoff = attempts, backoff
	return r
}

// Send runs the request. A response that is still retryable after the
// last attempt is returned as-is; check it with Err.
func (r *Request) Send() (*Response, error) {
	if r.buildErr != nil {
		return nil, r.buildErr
	}

	var (
		last    *Response
		lastErr error
		wait    = r.backoff
	)
	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, err := r.do()
		if err == nil && !resp.retryable() {
			return resp, nil
		}
		if err == nil {
			last, lastErr = resp, resp.Err()
		} else {
			last, lastErr = nil, err
		}

		if attempt == r.attempts {
			break
		}
		logger.WithCtx(r.ctx).Warn("http: retrying",
			"method", r.method, "url", r.url, "attempt", attempt, "backoff", wait, "error", lastErr)
		select {
		case <-r.ctx.Done():
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, r.ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}

	if last != nil {
		return last, nil
	}
	return nil, fmt.Errorf("http: %s %s failed after %d attempts: %w", r.method, r.url, r.attempts, lastErr)
}

func (r *Request) do() (*Response, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	req.Header = r.header.Clone()
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Header     gohttp.Header
	Body       []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) retryable() bool {
	return r.StatusCode == gohttp.StatusTooManyRequests || r.StatusCode >= 500
}

// Decode unmarshals a JSON body into dest.
func (r *Response) Decode(dest any) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("http: decode body: %w", err)
	}
	return nil
}

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Err returns a *StatusError unless the status is 2xx.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	body := strings.TrimSpace(string(r.Body))
	if len(body) > 512 {
		body = body[:512]
	}
	return &StatusError{StatusCode: r.StatusCode, Body: body}
}
