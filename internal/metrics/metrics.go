// Package metrics wires the OpenTelemetry meter provider to Prometheus
// and, optionally, an OTLP collector.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/swap-quoter/internal/logger"
)

const (
	defaultPort    = 2223
	exportInterval = 15 * time.Second
)

type collector struct {
	endpoint string
	headers  map[string]string
	insecure bool
}

type config struct {
	service    string
	prometheus bool
	collectors []collector
}

// Option configures the meter provider.
type Option func(*config)

// WithServiceName sets service.name. OTEL_SERVICE_NAME is used when unset.
func WithServiceName(name string) Option {
	return func(c *config) { c.service = name }
}

// WithPrometheus registers a pull reader on the default Prometheus
// registry.
func WithPrometheus() Option {
	return func(c *config) { c.prometheus = true }
}

// WithCollector pushes to an OTLP gRPC collector.
func WithCollector(endpoint string, headers map[string]string, insecure bool) Option {
	return func(c *config) {
		c.collectors = append(c.collectors, collector{endpoint: endpoint, headers: headers, insecure: insecure})
	}
}

// NewMetricProvider builds the provider and installs it globally so every
// instrument created through otel.Meter reaches the configured readers.
func NewMetricProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	cfg := config{service: os.Getenv("OTEL_SERVICE_NAME")}
	for _, opt := range opts {
		opt(&cfg)
	}

	res := resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.service))
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.prometheus {
		reader, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus reader: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	for _, c := range cfg.collectors {
		grpcOpts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(c.endpoint),
			otlpmetricgrpc.WithHeaders(c.headers),
		}
		if c.insecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter %s: %w", c.endpoint, err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(exportInterval))))
	}

	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// PrometheusHandler exposes the registry fed by the prometheus reader.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// ServePrometheusMetrics serves /metrics on port until ctx is done.
func ServePrometheusMetrics(ctx context.Context, log logger.LoggerInterface, port int) error {
	if port == 0 {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", PrometheusHandler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info(ctx, "serving prometheus metrics", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
