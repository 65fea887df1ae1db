package payment

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Proton-105/raffle-bot/internal/errors"
	"github.com/Proton-105/raffle-bot/pkg/config"
	"github.com/Proton-105/raffle-bot/pkg/metrics"
)

const apiName = "paystack"

// errNotFound marks a 404 from the verify endpoint.
var errNotFound = errors.New("transaction not found")

// PaystackClient implements Gateway against the Paystack REST API.
type PaystackClient struct {
	http          *http.Client
	baseURL       string
	secretKey     string
	currency      string
	callbackURL   string
	initTimeout   time.Duration
	verifyTimeout time.Duration
	retry         apperrors.RetryPolicy
	breaker       *apperrors.CircuitBreaker
	log           *slog.Logger
}

// Option customises a PaystackClient.
type Option func(*PaystackClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *PaystackClient) { c.http = client }
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy apperrors.RetryPolicy) Option {
	return func(c *PaystackClient) { c.retry = policy }
}

// NewPaystackClient builds a client from cfg.
func NewPaystackClient(cfg config.PaystackConfig, log *slog.Logger, opts ...Option) *PaystackClient {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "paystack"))

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		log.Warn("TLS certificate verification is disabled for the payment gateway")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for broken CA bundles
	}

	retry := apperrors.DefaultRetryPolicy
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	c := &PaystackClient{
		http:          &http.Client{Transport: transport},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:     cfg.SecretKey,
		currency:      cfg.Currency,
		callbackURL:   cfg.CallbackURL,
		initTimeout:   cfg.InitializeTimeout,
		verifyTimeout: cfg.VerifyTimeout,
		retry:         retry,
		breaker:       apperrors.NewCircuitBreaker(),
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string         `json:"email"`
	Amount      string         `json:"amount"`
	Reference   string         `json:"reference"`
	Currency    string         `json:"currency,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// Start opens a transaction and returns the hosted checkout URL.
func (c *PaystackClient) Start(ctx context.Context, req StartRequest) (*Transaction, error) {
	if IsPlaceholderReference(req.Reference) {
		return nil, apperrors.NewValidationError("payment reference is required")
	}

	payload := initializeRequest{
		Email:       req.Email,
		Amount:      strconv.FormatInt(req.Amount, 10),
		Reference:   req.Reference,
		Currency:    c.currency,
		CallbackURL: c.callbackURL,
		Metadata:    req.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode initialize request: %w", err)
	}

	env, err := c.call(ctx, "initialize", http.MethodPost, "/transaction/initialize", body, c.initTimeout)
	if err != nil {
		return nil, err
	}

	if !env.Status {
		return nil, apperrors.NewPermanentAPIError(apiName, fmt.Errorf("initialize rejected: %s", env.Message))
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, apperrors.NewPermanentAPIError(apiName, fmt.Errorf("decode initialize data: %w", err))
	}
	if data.AuthorizationURL == "" {
		return nil, apperrors.NewPermanentAPIError(apiName, errors.New("initialize returned no authorization url"))
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}

	return &Transaction{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

// Verify asks the gateway whether reference was paid.
func (c *PaystackClient) Verify(ctx context.Context, reference string) VerifyResult {
	if IsPlaceholderReference(reference) {
		c.log.Warn("refusing to verify placeholder reference", slog.String("reference", reference))
		return VerifyResult{Status: NotConfirmed}
	}

	env, err := c.call(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, c.verifyTimeout)
	if err != nil {
		if isPermanent(err) {
			return VerifyResult{Status: NotConfirmed, Err: err}
		}
		c.log.Warn("payment verification unavailable", slog.String("reference", reference), slog.Any("error", err))
		return VerifyResult{Status: TransientFailure, Err: err}
	}

	if !env.Status {
		return VerifyResult{Status: NotConfirmed, GatewayStatus: env.Message}
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		c.log.Warn("undecodable verify payload", slog.String("reference", reference), slog.Any("error", err))
		return VerifyResult{Status: NotConfirmed, Err: err}
	}

	result := VerifyResult{Status: NotConfirmed, Amount: data.Amount, GatewayStatus: data.Status}
	if data.Status == "success" {
		result.Status = Confirmed
	}
	return result
}

// Ping checks credentials and connectivity with a cheap authenticated request.
func (c *PaystackClient) Ping(ctx context.Context) error {
	env, err := c.call(ctx, "ping", http.MethodGet, "/bank?perPage=1", nil, c.verifyTimeout)
	if err != nil {
		return err
	}
	if !env.Status {
		return apperrors.NewPermanentAPIError(apiName, fmt.Errorf("connection test rejected: %s", env.Message))
	}
	return nil
}

func (c *PaystackClient) call(ctx context.Context, op, method, path string, body []byte, timeout time.Duration) (*envelope, error) {
	var env *envelope
	err := c.breaker.Call(func() error {
		return apperrors.WithRetryPolicy(ctx, c.retry, func() error {
			var attemptErr error
			env, attemptErr = c.do(ctx, op, method, path, body, timeout)
			return attemptErr
		})
	})
	if errors.Is(err, apperrors.ErrCircuitOpen) {
		metrics.RecordGatewayRequest(op, "circuit_open", 0)
	}
	return env, err
}

func (c *PaystackClient) do(ctx context.Context, op, method, path string, body []byte, timeout time.Duration) (*envelope, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(op, "network_error", time.Since(start))
		return nil, apperrors.NewExternalAPIError(apiName, fmt.Errorf("%s: %w", op, err))
	}
	defer resp.Body.Close()
	metrics.RecordGatewayRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewExternalAPIError(apiName, fmt.Errorf("%s: read body: %w", op, err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperrors.NewExternalAPIError(apiName, fmt.Errorf("%s: status %d", op, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewPermanentAPIError(apiName, fmt.Errorf("%s: %w", op, errNotFound))
	case resp.StatusCode >= http.StatusBadRequest:
		var rejected envelope
		_ = json.Unmarshal(raw, &rejected)
		return nil, apperrors.NewPermanentAPIError(apiName, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, rejected.Message))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.NewPermanentAPIError(apiName, fmt.Errorf("%s: decode response: %w", op, err))
	}

	return &env, nil
}

// isPermanent reports an upstream answer that retrying cannot change.
func isPermanent(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && !appErr.Retryable
}
