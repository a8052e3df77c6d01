package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultTimeout bounds every backend call
	DefaultTimeout = 50 * time.Second

	maxResponseSize = 8 << 20
)

// TokenSource supplies the bearer token attached to outgoing requests.
// An empty token means the request is sent anonymously.
type TokenSource interface {
	Token() string
}

// Config holds the backend connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a typed access layer to the library REST backend
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource sets the bearer token source
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// New creates a new backend client
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: base,
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithTokenSource returns a copy of the client bound to ts.
// Both clients share one HTTP transport.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	bound := *c
	bound.tokens = ts
	return &bound
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// request describes one backend call
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string // overrides the token source when set
}

func (r request) op() string {
	return r.method + " " + r.path
}

// do executes the request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, r request, out any) error {
	data, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", r.op(), err)
	}
	return nil
}

// send executes the request and returns the raw response body of a 2xx response
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", r.op(), err)
		}
		body = bytes.NewReader(buf)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", r.op(), err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := r.token
	if token == "" {
		token = c.token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		netErr := &NetworkError{Op: r.op(), Err: err, Timeout: isTimeout(ctx, err)}
		c.logger.Warn("Backend request failed",
			zap.String("op", r.op()),
			zap.String("request_id", requestID),
			zap.Bool("timeout", netErr.Timeout),
			zap.Error(err),
		)
		return nil, netErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Op: r.op(), Err: err, Timeout: isTimeout(ctx, err)}
	}

	c.logger.Debug("Backend request completed",
		zap.String("op", r.op()),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(r.op(), resp.StatusCode, data)
	}
	return data, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
