// Package gateway is the single road to the backend API. Every
// authenticated request passes through Send, which settles the token
// question before any bytes leave the process: no session means no
// network, and a stale token is refreshed first.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/grocerly/storefront/core/tag"
	"github.com/grocerly/storefront/core/validator"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/session"
)

const (
	contentTypeJSON = "application/json"

	defaultBufferSize = 4096
	maxBufferSize     = 1024 * 1024
)

// Config for the gateway.
type Config struct {
	// BaseURL of the backend, e.g. "https://shop.example.com".
	BaseURL string `validate:"required,url"`

	// Timeout per request, in milliseconds.
	Timeout int64 `default:"15000"`
}

// ApplyDefaults fills zero fields from struct tags.
func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

// Client performs requests against the backend with object pooling
// for per-request state.
type Client struct {
	config   *Config
	sessions *session.Store
	client   *http.Client
	logger   *log.Logger

	requestOptPool sync.Pool
	bufferPool     sync.Pool
}

// Option configures the gateway client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a gateway client bound to a session store.
func New(cfg *Config, sessions *session.Store, opts ...Option) (*Client, error) {
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := validator.Validate.Struct(cfg); err != nil {
		return nil, errors.Invalid("gateway: %s", err)
	}

	c := &Client{
		config:   cfg,
		sessions: sessions,
		logger:   log.G,
		requestOptPool: sync.Pool{
			New: func() any {
				return &RequestOption{
					header: make(map[string]string, 8),
					query:  make(url.Values, 4),
				}
			},
		},
		bufferPool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Millisecond}
	}
	return c, nil
}

// RequestOption holds per-request state.
type RequestOption struct {
	ctx      context.Context
	header   map[string]string
	query    url.Values
	response any
}

// WithContext sets the request context.
func WithContext(ctx context.Context) func(*RequestOption) {
	return func(opt *RequestOption) {
		opt.ctx = ctx
	}
}

// WithHeader sets additional headers.
func WithHeader(header map[string]string) func(*RequestOption) {
	return func(opt *RequestOption) {
		maps.Copy(opt.header, header)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) func(*RequestOption) {
	return func(opt *RequestOption) {
		opt.query.Add(key, value)
	}
}

// WithResponse decodes a 2xx JSON body into target.
func WithResponse(target any) func(*RequestOption) {
	return func(opt *RequestOption) {
		opt.response = target
	}
}

func (opt *RequestOption) reset() {
	opt.ctx = nil
	for k := range opt.header {
		delete(opt.header, k)
	}
	for k := range opt.query {
		delete(opt.query, k)
	}
	opt.header["Content-Type"] = contentTypeJSON
	opt.response = nil
}

func (opt *RequestOption) context() context.Context {
	if opt.ctx != nil {
		return opt.ctx
	}
	return context.Background()
}

// Send performs an authenticated request. With no session it returns
// an Unauthenticated error without touching the network; an expired
// token is refreshed first, and a failed refresh surfaces as
// SessionExpired. Every response status comes back to the caller,
// only transport failures are errors.
func (c *Client) Send(method, endpoint string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	opt := c.getRequestOption()
	defer c.putRequestOption(opt)
	for _, o := range opts {
		o(opt)
	}

	token, err := c.sessions.AccessToken(opt.context())
	if err != nil {
		return nil, err
	}
	opt.header["Authorization"] = "Bearer " + token

	return c.perform(method, endpoint, body, opt)
}

// Do performs an anonymous request for public surfaces.
func (c *Client) Do(method, endpoint string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	opt := c.getRequestOption()
	defer c.putRequestOption(opt)
	for _, o := range opts {
		o(opt)
	}
	return c.perform(method, endpoint, body, opt)
}

func (c *Client) perform(method, endpoint string, body any, opt *RequestOption) (*http.Response, error) {
	url, err := endpointURL(c.config.BaseURL, []string{endpoint}, opt.query)
	if err != nil {
		return nil, errors.Invalid("bad endpoint %q", endpoint).WithCause(err)
	}

	req, err := c.createRequest(opt.context(), method, url, body)
	if err != nil {
		return nil, errors.Internal("build request").WithCause(err)
	}
	for k, v := range opt.header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("url", url).Msg("request failed")
		return nil, errors.Transport("request failed").WithCause(err)
	}

	return c.processResponse(resp, opt.response)
}

func (c *Client) createRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	switch v := body.(type) {
	case nil:
		return http.NewRequestWithContext(ctx, method, url, nil)
	case io.Reader:
		return http.NewRequestWithContext(ctx, method, url, v)
	default:
		buf := c.getBuffer()
		defer c.putBuffer(buf)

		if err := json.NewEncoder(buf).Encode(v); err != nil {
			return nil, err
		}
		return http.NewRequestWithContext(ctx, method, url, bytes.NewReader(buf.Bytes()))
	}
}

// processResponse decodes into the target only for 2xx responses so
// error bodies stay readable for the caller.
func (c *Client) processResponse(resp *http.Response, target any) (*http.Response, error) {
	if target == nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}

	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return nil, errors.Rejected("malformed response body").WithCause(err)
	}
	return resp, nil
}

func (c *Client) getRequestOption() *RequestOption {
	opt := c.requestOptPool.Get().(*RequestOption)
	opt.reset()
	return opt
}

func (c *Client) putRequestOption(opt *RequestOption) {
	c.requestOptPool.Put(opt)
}

func (c *Client) getBuffer() *bytes.Buffer {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (c *Client) putBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxBufferSize {
		c.bufferPool.Put(buf)
	}
}

// Authenticated verbs.

// Get performs an authenticated GET.
func (c *Client) Get(endpoint string, opts ...func(*RequestOption)) (*http.Response, error) {
	return c.Send(http.MethodGet, endpoint, nil, opts...)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(endpoint string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	return c.Send(http.MethodPost, endpoint, body, opts...)
}

// Put performs an authenticated PUT with a JSON body.
func (c *Client) Put(endpoint string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	return c.Send(http.MethodPut, endpoint, body, opts...)
}

// Patch performs an authenticated PATCH with a JSON body.
func (c *Client) Patch(endpoint string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	return c.Send(http.MethodPatch, endpoint, body, opts...)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(endpoint string, opts ...func(*RequestOption)) (*http.Response, error) {
	return c.Send(http.MethodDelete, endpoint, nil, opts...)
}

// Sessions exposes the bound session store.
func (c *Client) Sessions() *session.Store {
	return c.sessions
}
