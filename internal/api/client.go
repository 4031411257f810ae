// Package api is the HTTP client for the assistant backend. It exposes one
// method per backend capability. Each call issues exactly one request,
// attaches the bearer token when one is available and maps failures onto
// the domain error taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/ports"
	"github.com/brianly1003/aidev/internal/telemetry"
)

const (
	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps decoded response bodies.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBody caps how much of a failed response body is kept.
	maxErrorBody = 64 * 1024

	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader = "X-Request-ID"
)

// StaticToken is a TokenSource that always yields the same token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() string {
	return string(t)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // Requests per second; 0 disables the limiter
	RateBurst  int
	HTTPClient *http.Client
	Telemetry  *telemetry.Providers
	UserAgent  string
}

// Client is the backend HTTP client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	stream    *http.Client
	tokens    ports.TokenSource
	limiter   *rate.Limiter
	tracer    trace.Tracer
	requests  metric.Int64Counter
	latency   metric.Float64Histogram
	userAgent string
}

// New creates a new Client. tokens may be nil, in which case no request
// carries an Authorization header.
func New(opts Options, tokens ports.TokenSource) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	// Streams are bounded by the caller's context instead of a fixed timeout.
	streamClient := &http.Client{Transport: httpClient.Transport}

	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}

	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		http:      httpClient,
		stream:    streamClient,
		tokens:    tokens,
		tracer:    tel.Tracer,
		userAgent: opts.UserAgent,
	}
	if c.userAgent == "" {
		c.userAgent = "aidev"
	}

	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	var err error
	c.requests, err = tel.Meter.Int64Counter("aidev.api.requests",
		metric.WithDescription("Backend requests by operation and status"))
	if err != nil {
		log.Debug().Err(err).Msg("failed to create request counter")
	}
	c.latency, err = tel.Meter.Float64Histogram("aidev.api.latency",
		metric.WithDescription("Backend request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Debug().Err(err).Msg("failed to create latency histogram")
	}

	return c
}

// NewFromConfig creates a Client from the api section of the configuration.
func NewFromConfig(cfg config.APIConfig, tokens ports.TokenSource, tel *telemetry.Providers) *Client {
	return New(Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout(),
		RateLimit: cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
		Telemetry: tel,
	}, tokens)
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one outgoing call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	streaming   bool
}

func (r request) op() string {
	return r.method + " " + r.path
}

// jsonBody encodes v for a request body.
func jsonBody(v interface{}) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// do sends req and returns the response when the status is 2xx. The caller
// must close the body. Any other outcome is returned as a NetworkError or
// HTTPError.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	op := req.op()

	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.observe(ctx, span, op, 0, start, err)
			return nil, domain.NewNetworkError(op, err)
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, requestID)
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	span.SetAttributes(attribute.String("request.id", requestID))

	client := c.http
	if req.streaming {
		client = c.stream
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		c.observe(ctx, span, op, 0, start, err)
		log.Debug().Err(err).Str("op", op).Str("request_id", requestID).Msg("request failed")
		return nil, domain.NewNetworkError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		httpErr := domain.NewHTTPError(op, resp.StatusCode, string(body))
		c.observe(ctx, span, op, resp.StatusCode, start, httpErr)
		log.Debug().
			Str("op", op).
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Msg("request rejected")
		return nil, httpErr
	}

	c.observe(ctx, span, op, resp.StatusCode, start, nil)
	log.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")
	return resp, nil
}

func (c *Client) observe(ctx context.Context, span trace.Span, op string, status int, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.Int("status", status),
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if c.requests != nil {
		c.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if c.latency != nil {
		c.latency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	}
}

// doJSON sends req and decodes a successful response into out. out may be
// nil to discard the body.
func (c *Client) doJSON(ctx context.Context, req request, out interface{}) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", req.op(), err)
	}
	return nil
}

// postJSON is doJSON for a POST with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, query url.Values, in, out interface{}) error {
	req := request{method: http.MethodPost, path: path, query: query}
	if in != nil {
		body, err := jsonBody(in)
		if err != nil {
			return err
		}
		req.body = body
		req.contentType = "application/json"
	}
	return c.doJSON(ctx, req, out)
}

// getJSON is doJSON for a GET.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.doJSON(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}
