// Package paystack talks to the Paystack transaction API. Amounts cross
// this boundary in minor units only.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shop-svc/circuitbreaker"
	"shop-svc/config"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable covers transport errors, timeouts, 5xx/429 answers and
	// an open breaker. Callers may retry.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrUnknownReference means the gateway has no transaction for the reference.
	ErrUnknownReference = errors.New("unknown payment reference")
	// ErrRejected is a definitive 4xx answer other than an unknown reference.
	ErrRejected      = errors.New("payment gateway rejected the request")
	ErrNotConfigured = errors.New("payment gateway is not configured")
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Currency    string
	CallbackURL string
	Metadata    map[string]interface{}
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification is the gateway's view of one transaction. RawStatus keeps the
// gateway's own word (abandoned, reversed, ...) next to the normalized Status.
type Verification struct {
	Reference   string
	Status      Status
	RawStatus   string
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
	Channel     string
	Metadata    map[string]interface{}
}

// OrderID pulls the order id stashed in metadata at initialization. Paystack
// echoes numbers back as JSON numbers or strings depending on the channel.
func (v *Verification) OrderID() (int, bool) {
	raw, ok := v.Metadata["order_id"]
	if !ok {
		raw, ok = v.Metadata["orderId"]
	}
	if !ok {
		return 0, false
	}
	switch id := raw.(type) {
	case float64:
		if id > 0 && id == float64(int(id)) {
			return int(id), true
		}
	case string:
		if n, err := strconv.Atoi(id); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

type Client struct {
	baseURL    string
	secretKey  string
	currency   string
	callback   string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg config.PaystackConfig, logger *zap.Logger) *Client {
	if cfg.SecretKey == "" {
		logger.Warn("PAYSTACK_SECRET_KEY not set, payment initialization and verification will fail")
	}

	breaker := circuitbreaker.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset,
		circuitbreaker.WithFailureClassifier(func(err error) bool {
			return errors.Is(err, ErrUnavailable)
		}),
		circuitbreaker.WithStateChangeHook(func(from, to circuitbreaker.State) {
			logger.Warn("Payment gateway circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}),
	)

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		currency:   cfg.Currency,
		callback:   cfg.CallbackURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// Currency is the default currency sent when a request leaves it empty.
func (c *Client) Currency() string {
	return c.currency
}

// SecretKey signs webhook payloads.
func (c *Client) SecretKey() string {
	return c.secretKey
}

// NewReference builds a reference unique across concurrent initializations
// of the same order: order id, millisecond timestamp and a random suffix.
func NewReference(orderID int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("order_%d_%d_%s", orderID, time.Now().UnixMilli(), suffix)
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeBody struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Reference   string                 `json:"reference"`
	Currency    string                 `json:"currency,omitempty"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	PaidAt    string          `json:"paid_at"`
	Channel   string          `json:"channel"`
	Currency  string          `json:"currency"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "paystack.Initialize")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.reference", req.Reference),
		attribute.Int64("payment.amount_minor", req.AmountMinor),
	)

	if c.secretKey == "" {
		return nil, ErrNotConfigured
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}
	if req.Currency == "" {
		req.Currency = c.currency
	}
	if req.CallbackURL == "" {
		req.CallbackURL = c.callback
	}

	body := initializeBody{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Reference:   req.Reference,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}
	if result.Reference == "" {
		result.Reference = req.Reference
	}
	return result, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "paystack.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", reference))

	if c.secretKey == "" {
		return nil, ErrNotConfigured
	}
	if reference == "" {
		return nil, ErrUnknownReference
	}

	var data verifyData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		span.RecordError(err)
		return nil, err
	}

	v := &Verification{
		Reference:   data.Reference,
		RawStatus:   data.Status,
		Status:      normalizeStatus(data.Status),
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		PaidAt:      parseTime(data.PaidAt),
		Channel:     data.Channel,
		Metadata:    decodeMetadata(data.Metadata),
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	span.SetAttributes(attribute.String("payment.status", data.Status))
	return v, nil
}

func normalizeStatus(raw string) Status {
	switch raw {
	case "success":
		return StatusSuccess
	case "ongoing", "pending", "processing", "queued":
		return StatusPending
	}
	return StatusFailed
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

// decodeMetadata accepts an object, a JSON-encoded object inside a string,
// or the empty string Paystack sends when no metadata was attached.
func decodeMetadata(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	err := c.breaker.Execute(ctx, func() error {
		return c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil && !errors.Is(err, ErrUnavailable) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Payment gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	c.logger.Debug("Payment gateway response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	var env envelope
	_ = json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownReference, env.Message)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(env.Message), "reference not found"):
		return fmt.Errorf("%w: %s", ErrUnknownReference, env.Message)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, env.Message)
	}

	if !env.Status {
		return fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
		}
	}
	return nil
}
