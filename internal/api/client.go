// Package api is the wire-level HTTP client shared by every backend call:
// base URL resolution, timeouts, request decoration, and response envelope
// interception.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/resumepilot/internal/core/logging"
)

// NoTimeout disables the per-request deadline. Used by the push stream.
const NoTimeout time.Duration = -1

// DefaultTimeout applies to ordinary calls when Config.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// HeaderRequestID carries a per-request correlation id.
const HeaderRequestID = "X-Request-Id"

// Decorator mutates an outgoing request before it is sent.
type Decorator func(*http.Request)

// AuthFailureFunc is invoked whenever a response signals an authorization failure.
type AuthFailureFunc func(ctx context.Context)

// Config holds the transport settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Timeout should be
// zero; deadlines are applied per request.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDecorator appends request decorators, run in registration order.
func WithDecorator(d ...Decorator) Option {
	return func(c *Client) { c.decorators = append(c.decorators, d...) }
}

// WithAuthFailureHandler sets the hook run on authorization failures.
func WithAuthFailureHandler(fn AuthFailureFunc) Option {
	return func(c *Client) { c.onAuthFailure = fn }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client sends requests to the analysis backend.
type Client struct {
	baseURL       string
	timeout       time.Duration
	http          *http.Client
	decorators    []Decorator
	onAuthFailure AuthFailureFunc
	log           zerolog.Logger
}

// New creates a client. The RequestID decorator is always installed first.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:    timeout,
		http:       &http.Client{},
		decorators: []Decorator{RequestID},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestID sets X-Request-Id unless the caller already set one. The id
// tagged on the request context is used when present.
func RequestID(r *http.Request) {
	if r.Header.Get(HeaderRequestID) != "" {
		return
	}
	id := logging.RequestID(r.Context())
	if id == "" {
		id = uuid.NewString()
	}
	r.Header.Set(HeaderRequestID, id)
}

// Multipart describes a single-file multipart/form-data body.
type Multipart struct {
	Field    string
	FileName string
	Content  io.Reader
	Fields   map[string]string
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Form   *Multipart
	Accept string

	// Timeout overrides the client default. Zero uses the default, NoTimeout
	// disables the deadline.
	Timeout time.Duration
}

func (r Request) op() string {
	return r.Method + " " + r.Path
}

// Blob is a binary artifact returned by a download endpoint.
type Blob struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Do sends the request and returns the unwrapped JSON payload.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	resp, cancel, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer c.closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, req.op(), fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(ctx, req.op(), resp.StatusCode, body)
	}

	payload, err := unwrapEnvelope(req.op(), body)
	if err != nil {
		return nil, c.intercept(ctx, err)
	}
	return payload, nil
}

// DoJSON sends the request and decodes the unwrapped payload into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	payload, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ApplicationError{Code: SuccessCode, Message: fmt.Sprintf("decode %s response: %v", req.op(), err)}
	}
	return nil
}

// Download sends the request and returns the raw response body. JSON bodies
// are still checked for an error envelope.
func (c *Client) Download(ctx context.Context, req Request) (Blob, error) {
	if req.Accept == "" {
		req.Accept = "*/*"
	}

	resp, cancel, err := c.send(ctx, req)
	if err != nil {
		return Blob{}, err
	}
	defer cancel()
	defer c.closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, c.transportError(ctx, req.op(), fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Blob{}, c.fail(ctx, req.op(), resp.StatusCode, body)
	}

	contentType := resp.Header.Get("Content-Type")
	if isJSON(contentType) {
		if _, err := unwrapEnvelope(req.op(), body); err != nil {
			return Blob{}, c.intercept(ctx, err)
		}
	}

	return Blob{
		Data:        body,
		ContentType: contentType,
		FileName:    attachmentName(resp.Header.Get("Content-Disposition")),
	}, nil
}

// OpenStream sends the request without a deadline and returns the live
// response once the backend has accepted it. The caller owns the body.
func (c *Client) OpenStream(ctx context.Context, req Request) (*http.Response, error) {
	req.Timeout = NoTimeout
	if req.Accept == "" {
		req.Accept = "text/event-stream"
	}

	resp, _, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer c.closeBody(resp)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, c.fail(ctx, req.op(), resp.StatusCode, body)
	}

	// A JSON reply on the stream endpoint means the backend answered with an
	// envelope instead of opening the channel.
	if isJSON(resp.Header.Get("Content-Type")) {
		defer c.closeBody(resp)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if _, err := unwrapEnvelope(req.op(), body); err != nil {
			return nil, c.intercept(ctx, err)
		}
		return nil, &ApplicationError{Code: resp.StatusCode, Message: "backend did not open an event stream"}
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, context.CancelFunc, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}

	if logging.RequestID(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}

	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		cancel()
		return nil, nil, c.transportError(ctx, req.op(), err)
	}

	c.log.Debug().
		Ctx(ctx).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	return resp, cancel, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)

	switch {
	case req.Form != nil:
		buf, ct, err := encodeMultipart(req.Form)
		if err != nil {
			return nil, &ValidationError{Message: "encode multipart body", Err: err}
		}
		body, contentType = buf, ct
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &ValidationError{Message: "encode request body", Err: err}
		}
		body, contentType = bytes.NewReader(data), "application/json;charset=utf-8"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &ValidationError{Message: "create request", Err: err}
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)

	for _, d := range c.decorators {
		d(httpReq)
	}

	return httpReq, nil
}

func encodeMultipart(form *Multipart) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for k, v := range form.Fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	field := form.Field
	if field == "" {
		field = "file"
	}
	part, err := writer.CreateFormFile(field, form.FileName)
	if err != nil {
		return nil, "", err
	}
	if form.Content != nil {
		if _, err := io.Copy(part, form.Content); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &body, writer.FormDataContentType(), nil
}

// fail classifies a non-2xx response and runs the auth hook when needed.
func (c *Client) fail(ctx context.Context, op string, status int, body []byte) error {
	return c.intercept(ctx, classify(op, status, bodyMessage(body)))
}

func (c *Client) intercept(ctx context.Context, err error) error {
	if IsUnauthorized(err) && c.onAuthFailure != nil {
		c.onAuthFailure(ctx)
	}
	return err
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	return &TransportError{Op: op, Timeout: timeout, Err: err}
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.log.Debug().Err(err).Msg("api: close response body")
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
