// Package apm installs the global OpenTelemetry tracer provider.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/swap-quoter/internal/logger"
)

type Provider string

const (
	NewRelicProvider  Provider = "NEWRELIC_PROVIDER"
	ZipkinProvider    Provider = "ZIPKIN_PROVIDER"
	HoneycombProvider Provider = "HONEYCOMB_PROVIDER"
	ConsoleProvider   Provider = "CONSOLE_PROVIDER"
	EmptyProvider     Provider = "EMPTY_PROVIDER"
)

const stopTimeout = 5 * time.Second

// ParseProvider maps telemetry.trace_provider values ("zipkin", "honeycomb",
// "newrelic", "console") to a Provider. Anything else is EmptyProvider.
func ParseProvider(name string) Provider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zipkin":
		return ZipkinProvider
	case "honeycomb", "otlp":
		return HoneycombProvider
	case "newrelic":
		return NewRelicProvider
	case "console", "stdout":
		return ConsoleProvider
	default:
		return EmptyProvider
	}
}

// Config selects the exporter. Endpoint is a URL for the OTLP and zipkin
// exporters; an http:// or https:// scheme with a /v1/traces path picks
// OTLP over HTTP, anything else OTLP over gRPC.
type Config struct {
	Provider    Provider
	ServiceName string
	Endpoint    string
	Headers     map[string]string
}

type TraceProvider interface {
	Stop() error
}

type noopProvider struct{}

func (noopProvider) Stop() error { return nil }

type sdkProvider struct {
	tp *sdktrace.TracerProvider
}

func (p sdkProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// NewTraceProvider builds the exporter for cfg.Provider and installs a
// batching provider and the W3C propagators globally. EmptyProvider keeps
// the global no-op tracer.
func NewTraceProvider(ctx context.Context, log logger.LoggerInterface, cfg Config) (TraceProvider, error) {
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s exporter: %w", cfg.Provider, err)
	}
	if exp == nil {
		return noopProvider{}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
		attribute.String("otel.provider", string(cfg.Provider)),
	))
	if err != nil {
		log.Warn(ctx, "trace resource merge", "error", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return sdkProvider{tp: tp}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Provider {
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ZipkinProvider:
		return zipkin.New(cfg.Endpoint)
	case NewRelicProvider, HoneycombProvider:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint required")
		}
		if isHTTPTraces(cfg.Endpoint) {
			return otlptracehttp.New(ctx,
				otlptracehttp.WithEndpointURL(cfg.Endpoint),
				otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(cfg.Endpoint),
			otlptracegrpc.WithHeaders(cfg.Headers))
	default:
		return nil, nil
	}
}

func isHTTPTraces(endpoint string) bool {
	return (strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")) &&
		strings.HasSuffix(strings.TrimSuffix(endpoint, "/"), "/v1/traces")
}

// Noop is a TraceProvider that never touched the global tracer.
func Noop() TraceProvider { return noopProvider{} }
