// Package httpclient is the instrumented HTTP client used for REST quote
// sources.
package httpclient

import (
	"context"
	"maps"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	scope = "github.com/fd1az/swap-quoter/internal/httpclient"

	defaultTimeout  = 10 * time.Second
	defaultMaxBody  = 4 << 20
	maxConnsPerHost = 5
)

// Client hands out request builders bound to one upstream.
type Client interface {
	NewRequest(opts ...RequestOption) Request
}

// InstrumentedClient is a Client whose transport is traced and whose
// exchanges are counted per provider.
type InstrumentedClient struct {
	http     *http.Client
	cfg      clientConfig
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewInstrumentedClient builds a client from opts.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	cfg := clientConfig{provider: "default", timeout: defaultTimeout, maxBody: defaultMaxBody}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(scope)
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{KeepAlive: 10 * time.Second}).DialContext,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       2 * time.Minute,
		ExpectContinueTimeout: 100 * time.Millisecond,
	}

	meter := otel.GetMeterProvider().Meter(scope,
		metric.WithInstrumentationAttributes(attribute.String("provider", cfg.provider)))
	requests, err := meter.Int64Counter("quoter.http.client.requests",
		metric.WithDescription("Outbound HTTP requests by provider and outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("quoter.http.client.duration",
		metric.WithDescription("Outbound HTTP round trip time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &InstrumentedClient{
		http: &http.Client{
			Timeout: cfg.timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				})),
		},
		cfg:      cfg,
		requests: requests,
		latency:  latency,
	}, nil
}

// NewRequest starts a request carrying the client's default headers.
func (c *InstrumentedClient) NewRequest(opts ...RequestOption) Request {
	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}
	headers := make(map[string]string, len(c.cfg.headers))
	maps.Copy(headers, c.cfg.headers)
	return &request{client: c, cfg: rc, headers: headers}
}

func (c *InstrumentedClient) span(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return c.cfg.tracer.Start(ctx, "http "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("provider", c.cfg.provider),
		))
}

func (c *InstrumentedClient) record(ctx context.Context, started time.Time, ok bool, labels []attribute.KeyValue) {
	attrs := append([]attribute.KeyValue{
		attribute.String("provider", c.cfg.provider),
		attribute.Bool("success", ok),
	}, labels...)
	set := metric.WithAttributes(attrs...)
	c.requests.Add(ctx, 1, set)
	c.latency.Record(ctx, time.Since(started).Seconds(), set)
}
