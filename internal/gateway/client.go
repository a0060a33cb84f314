// Package gateway talks to the remote token, payment and lead services.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	idempotencyHeader      = "Idempotency-Key"
	maxResponseBytes       = 1 << 20
)

var tracer = otel.Tracer("github.com/siege-masterclass/checkout/internal/gateway")

var (
	// ErrMissingToken is returned when ResolveToken is called without a token.
	ErrMissingToken = errors.New("gateway: missing token")
	// ErrNotConfigured is returned when the endpoint for a call is empty.
	ErrNotConfigured = errors.New("gateway: endpoint not configured")
)

// StatusError reports a non-JSON or server error response.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway: %s status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	TokenURL        string
	PaymentURL      string
	LeadURL         string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	Transport       http.RoundTripper
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

// Client issues token, payment and lead calls. Each endpoint has its own circuit breaker.
type Client struct {
	tokenURL   string
	paymentURL string
	leadURL    string
	http       *http.Client
	logger     func(ctx context.Context, event string, fields map[string]any)

	tokenBreaker   *gobreaker.CircuitBreaker[[]byte]
	paymentBreaker *gobreaker.CircuitBreaker[[]byte]
	leadBreaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient validates the endpoints and builds an instrumented client.
func NewClient(opts Options) (*Client, error) {
	tokenURL, err := normalizeEndpoint(opts.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: token url: %w", err)
	}
	paymentURL, err := normalizeEndpoint(opts.PaymentURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: payment url: %w", err)
	}
	leadURL, err := normalizeEndpoint(opts.LeadURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: lead url: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	c := &Client{
		tokenURL:   tokenURL,
		paymentURL: paymentURL,
		leadURL:    leadURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
		logger: logger,
	}
	c.tokenBreaker = c.newBreaker("token", opts.BreakerFailures, opts.BreakerCooldown)
	c.paymentBreaker = c.newBreaker("payment", opts.BreakerFailures, opts.BreakerCooldown)
	c.leadBreaker = c.newBreaker("lead", opts.BreakerFailures, opts.BreakerCooldown)
	return c, nil
}

func (c *Client) newBreaker(name string, failures int, cooldown time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	if failures <= 0 {
		failures = defaultBreakerFailures
	}
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	threshold := uint32(failures)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger(context.Background(), "gateway.breaker.state_changed", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

// ResolveToken validates an access token. JSON error bodies are decoded like success bodies.
func (c *Client) ResolveToken(ctx context.Context, token string) (TokenResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenResponse{}, ErrMissingToken
	}
	if c == nil || c.tokenURL == "" {
		return TokenResponse{}, ErrNotConfigured
	}

	endpoint, err := withQuery(c.tokenURL, "token", token)
	if err != nil {
		return TokenResponse{}, err
	}

	ctx, span := tracer.Start(ctx, "gateway.ResolveToken", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var out TokenResponse
	err = c.do(ctx, span, c.tokenBreaker, "token", http.MethodGet, endpoint, nil, nil, &out)
	if err != nil {
		return TokenResponse{}, err
	}
	span.SetAttributes(
		attribute.Bool("checkout.token.valid", out.Valid),
		attribute.Bool("checkout.token.used", out.TokenUsed),
	)
	return out, nil
}

// SubmitPayment posts the order payload with an idempotency key.
func (c *Client) SubmitPayment(ctx context.Context, payload PaymentPayload, idempotencyKey string) (PaymentResult, error) {
	if c == nil || c.paymentURL == "" {
		return PaymentResult{}, ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("gateway: encode payment: %w", err)
	}

	ctx, span := tracer.Start(ctx, "gateway.SubmitPayment", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.payment.method", payload.Payment.Method),
		attribute.Int("checkout.payment.installments", payload.Payment.Installments),
	)

	headers := map[string]string{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers[idempotencyHeader] = key
	}

	var out PaymentResult
	if err := c.do(ctx, span, c.paymentBreaker, "payment", http.MethodPost, c.paymentURL, body, headers, &out); err != nil {
		return PaymentResult{}, err
	}
	span.SetAttributes(attribute.String("checkout.payment.status", out.NormalizedStatus()))
	return out, nil
}

// PostLead forwards a captured lead. The response body is ignored.
func (c *Client) PostLead(ctx context.Context, lead Lead) error {
	if c == nil || c.leadURL == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("gateway: encode lead: %w", err)
	}

	ctx, span := tracer.Start(ctx, "gateway.PostLead", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return c.do(ctx, span, c.leadBreaker, "lead", http.MethodPost, c.leadURL, body, nil, nil)
}

// LeadsEnabled reports whether a lead webhook is configured.
func (c *Client) LeadsEnabled() bool {
	return c != nil && c.leadURL != ""
}

// do runs one request through the breaker. Transport errors and 5xx count as breaker failures.
// Any other status is decoded into out when it carries JSON, otherwise it is a StatusError.
func (c *Client) do(ctx context.Context, span trace.Span, breaker *gobreaker.CircuitBreaker[[]byte], name, method, endpoint string, body []byte, headers map[string]string, out any) error {
	var status int
	var contentType string
	raw, err := breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		contentType = resp.Header.Get("Content-Type")
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if status >= http.StatusInternalServerError {
			return nil, &StatusError{Endpoint: name, Status: status, Body: drainError(data)}
		}
		return data, nil
	})
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger(ctx, "gateway.request_failed", map[string]any{
			"endpoint": name,
			"status":   status,
			"error":    err.Error(),
		})
		return fmt.Errorf("gateway: %s request: %w", name, err)
	}

	if out == nil {
		if status >= http.StatusBadRequest {
			return &StatusError{Endpoint: name, Status: status, Body: drainError(raw)}
		}
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		if status >= http.StatusBadRequest || !looksLikeJSON(contentType, raw) {
			return &StatusError{Endpoint: name, Status: status, Body: drainError(raw)}
		}
		return fmt.Errorf("gateway: decode %s response: %w", name, err)
	}
	return nil
}

func normalizeEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	return u.String(), nil
}

func withQuery(endpoint, key, value string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func drainError(b []byte) string {
	if len(b) > 256 {
		b = b[:256]
	}
	return strings.TrimSpace(string(b))
}
