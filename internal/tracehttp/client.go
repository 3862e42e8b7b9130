// Package tracehttp issues single outbound HTTP requests carrying a W3C
// traceparent header.
package tracehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/reqtrace/internal/tracecontext"
	"github.com/go-resty/resty/v2"
)

// Options adjust a single request.
type Options struct {
	// Traceparent is used as-is when set; otherwise one is generated.
	Traceparent string
	Header      http.Header
	// OnTraceparent is called with the header value before the request is sent.
	OnTraceparent func(string)
}

// Result is the outcome of a request that reached the server.
type Result struct {
	Traceparent string
	Response    *http.Response // body already consumed; see Body
	Body        []byte
	// Data is the decoded JSON body when the response declares a JSON
	// content type, else the body as a string.
	Data any
}

// StatusCode returns the response status code.
func (r *Result) StatusCode() int {
	if r == nil || r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// OK reports a 2xx status.
func (r *Result) OK() bool {
	code := r.StatusCode()
	return code >= 200 && code < 300
}

// Client wraps resty. It never retries and sets no timeout of its own.
type Client struct {
	resty     *resty.Client
	generator *tracecontext.Generator

	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGenerator replaces the traceparent generator.
func WithGenerator(g *tracecontext.Generator) ClientOption {
	return func(c *Client) { c.generator = g }
}

// WithHTTPClient makes resty send through hc.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client. Options may be given in any order.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{generator: tracecontext.NewGenerator()}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.resty = resty.NewWithClient(c.httpClient)
	} else {
		c.resty = resty.New()
	}
	if c.userAgent != "" {
		c.resty.SetHeader("User-Agent", c.userAgent)
	}
	c.resty.SetRetryCount(0)
	return c
}

// Do sends one request. Transport and decode errors are returned wrapped;
// a non-2xx status is not an error.
func (c *Client) Do(ctx context.Context, method, url string, body any, opts Options) (*Result, error) {
	tp := opts.Traceparent
	if tp == "" {
		generated, err := c.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("generating traceparent: %w", err)
		}
		tp = generated.String()
	}

	if opts.OnTraceparent != nil {
		opts.OnTraceparent(tp)
	}

	req := c.resty.R().SetContext(ctx)
	for k, vs := range opts.Header {
		req.SetHeaderMultiValues(map[string][]string{k: vs})
	}
	req.SetHeader(tracecontext.HeaderName, tp)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	res := &Result{
		Traceparent: tp,
		Response:    resp.RawResponse,
		Body:        resp.Body(),
	}

	if isJSON(resp.Header().Get("Content-Type")) {
		var data any
		if err := json.Unmarshal(res.Body, &data); err != nil {
			return res, fmt.Errorf("decoding JSON response: %w", err)
		}
		res.Data = data
	} else {
		res.Data = string(res.Body)
	}
	return res, nil
}

// PostJSON sends body as JSON with POST.
func (c *Client) PostJSON(ctx context.Context, url string, body any, opts Options) (*Result, error) {
	h := opts.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	opts.Header = h
	return c.Do(ctx, http.MethodPost, url, body, opts)
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}
