package oneinch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/circuitbreaker"
	"github.com/fd1az/swap-quoter/internal/httpclient"
	"github.com/fd1az/swap-quoter/internal/logger"
	"github.com/fd1az/swap-quoter/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/swap-quoter/business/quoting/infra/oneinch"

	// DefaultBaseURL is the public 1inch developer API.
	DefaultBaseURL = "https://api.1inch.dev"

	apiVersion        = "v5.2"
	defaultTimeout    = 5 * time.Second
	defaultRPM        = 60
	maxErrorBodyBytes = 512
)

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client calls the 1inch swap API behind a rate limiter and a breaker.
type Client struct {
	http    httpclient.Client
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[*httpclient.Response]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewClient creates a client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRPM
	}

	tracer := otel.Tracer(tracerName)

	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("1inch"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceResponse),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("1inch-api")
	cbCfg.IsSuccessful = isCallerError
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &Client{
		http:    client,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		cb:      circuitbreaker.New[*httpclient.Response](cbCfg),
		logger:  log,
		tracer:  tracer,
	}, nil
}

// isCallerError reports failures that say nothing about API health: 4xx
// answers other than 429, and cancelled callers.
func isCallerError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperror.CodeUpstreamError {
		return false
	}
	return appErr.StatusCode >= 400 && appErr.StatusCode < 500 && appErr.StatusCode != http.StatusTooManyRequests
}

// Quote calls GET /swap/v5.2/{chain}/quote.
func (c *Client) Quote(ctx context.Context, chainID uint64, query map[string]string) (*QuoteResponse, error) {
	var out QuoteResponse
	if err := c.get(ctx, chainID, "quote", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Swap calls GET /swap/v5.2/{chain}/swap.
func (c *Client) Swap(ctx context.Context, chainID uint64, query map[string]string) (*SwapResponse, error) {
	var out SwapResponse
	if err := c.get(ctx, chainID, "swap", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, chainID uint64, endpoint string, query map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext("1inch "+endpoint))
	}

	path := fmt.Sprintf("/swap/%s/%d/%s", apiVersion, chainID, endpoint)
	resp, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.http.NewRequest(
			httpclient.WithLabels(
				httpclient.Label("endpoint", endpoint),
				httpclient.Label("chain_id", strconv.FormatUint(chainID, 10)),
			),
			httpclient.WithResponseErrorHandler(upstreamErrorHandler),
			httpclient.WithRedactedHeaders("Authorization"),
		).
			SetQueryParams(query).
			SetResult(out).
			Get(ctx, path)
	})
	if err != nil {
		if apperror.IsAppError(err) {
			return err
		}
		return apperror.External(apperror.CodeExternalServiceError, "1inch "+endpoint, err)
	}
	if resp.Result() == nil {
		return apperror.New(apperror.CodeUpstreamError,
			apperror.WithStatusCode(resp.StatusCode),
			apperror.WithContext("malformed "+endpoint+" response"))
	}
	return nil
}

// upstreamErrorHandler turns any non-2xx answer into UPSTREAM_ERROR with
// the API's description when it sends one.
func upstreamErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Description != "" {
		return apperror.Upstream(statusCode, apiErr.Description)
	}
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return apperror.Upstream(statusCode, string(body))
}
