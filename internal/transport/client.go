package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/httpc"
	"github.com/loykin/apiload/internal/retry"
	"github.com/loykin/apiload/internal/util"
)

// Executor issues requests. *Client is the production implementation.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Headers map[string]string
	Timeout time.Duration
	Retry   retry.Policy
	TLS     *tls.Config
	Sleep   retry.Sleeper
	Logger  *common.Logger
}

// Client sends requests to one API with retry and backoff.
type Client struct {
	scheme   string
	host     string
	basePath string
	headers  map[string]string
	timeout  time.Duration
	policy   retry.Policy
	tls      *tls.Config
	sleep    retry.Sleeper
	logger   *common.Logger
}

// New validates the base URL and returns a client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("transport: base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("transport: unsupported scheme %q in base url", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("transport: base url %q has no host", raw)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.ContextSleep
	}
	c := &Client{
		scheme:   u.Scheme,
		host:     u.Host,
		basePath: strings.TrimRight(u.Path, "/"),
		headers:  map[string]string{},
		timeout:  timeout,
		policy:   opts.Retry.WithDefaults(),
		tls:      opts.TLS,
		sleep:    sleep,
		logger:   common.OrDefault(opts.Logger).WithComponent("transport"),
	}
	for k, v := range opts.Headers {
		c.headers[k] = v
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.scheme + "://" + c.host + c.basePath
}

// Policy returns the effective retry policy.
func (c *Client) Policy() retry.Policy { return c.policy }

// SetHeader sets a session header sent with every request.
func (c *Client) SetHeader(name, value string) {
	c.headers[name] = value
}

// URL builds the absolute URL for path and query.
func (c *Client) URL(path string, query map[string]any) string {
	p := "/" + strings.TrimLeft(path, "/")
	full := c.scheme + "://" + c.host + c.basePath + p
	if len(query) == 0 {
		return full
	}
	return full + "?" + encodeQuery(query)
}

// Execute sends req, retrying transport failures and retryable status codes
// according to the client's policy.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		return nil, errors.New("transport: method is required")
	}
	target := c.URL(req.Path, req.Query)
	headers := c.buildHeaders(req)
	logger := c.logger.WithRequest(method, target)

	var last *Response
	attempts, err := retry.Do(ctx, c.policy, c.sleep, func(n int) (bool, error) {
		logger.Debug("sending request", "attempt", n+1, "headers", headers)
		resp, err := c.attempt(ctx, method, target, headers, req.Body)
		if err != nil {
			last = nil
			return retryableError(ctx, err), err
		}
		last = resp
		return c.policy.IsRetryableStatus(resp.StatusCode), nil
	})
	if err != nil {
		logger.Warn("request failed", "attempts", attempts, "error", err)
		return nil, err
	}
	last.Attempts = attempts
	if last.DecodeErr != nil {
		logger.Debug("response body is not json", "error", last.DecodeErr)
	}
	logger.Debug("received response", "status", last.StatusCode, "attempts", attempts, "size", last.Size())
	return last, nil
}

func (c *Client) buildHeaders(req Request) map[string]string {
	h := map[string]string{
		"Content-Type": constants.ContentTypeJSON,
		"Accept":       constants.ContentTypeJSON,
	}
	for k, v := range c.headers {
		setHeader(h, k, v)
	}
	for k, v := range req.Headers {
		setHeader(h, k, v)
	}
	if req.Body != "" && !util.IsJSON(req.Body) {
		setHeader(h, "Content-Type", constants.ContentTypeText)
	}
	return h
}

// setHeader replaces any existing entry whose name matches case-insensitively.
func setHeader(h map[string]string, name, value string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
	h[name] = value
}

// attempt performs one exchange over a fresh connection.
func (c *Client) attempt(ctx context.Context, method, target string, headers map[string]string, body string) (*Response, error) {
	hc := &httpc.Httpc{TlsConfig: c.tls, Timeout: c.timeout}
	client := hc.New()
	defer httpc.Close(client)

	r := client.R().SetContext(ctx).SetHeaders(headers)
	if body != "" {
		r.SetBody([]byte(body))
	}
	res, err := r.Execute(method, target)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	final := target
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	return normalize(res.StatusCode(), res.Header(), res.Body(), final, method), nil
}

func encodeQuery(query map[string]any) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := url.Values{}
	for _, k := range keys {
		switch v := query[k].(type) {
		case []any:
			for _, item := range v {
				values.Add(k, util.AnyToString(item))
			}
		case []string:
			for _, item := range v {
				values.Add(k, item)
			}
		default:
			values.Add(k, util.AnyToString(v))
		}
	}
	return values.Encode()
}
