package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	chainDI "github.com/fd1az/swap-quoter/business/chain/di"
	quotingDI "github.com/fd1az/swap-quoter/business/quoting/di"
	"github.com/fd1az/swap-quoter/business/quoting/infra/wsapi"
	"github.com/fd1az/swap-quoter/internal/apm"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/health"
	"github.com/fd1az/swap-quoter/internal/logger"
	"github.com/fd1az/swap-quoter/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootFlags) *cobra.Command {
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live quote sessions over WebSocket",
		Long: `Serve exposes one quote controller per WebSocket connection on /ws, plus
health endpoints and, when telemetry is enabled, Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadConfig(root, os.Stderr)
			if err != nil {
				return err
			}
			log.Info(ctx, "starting swap quoter",
				"version", version,
				"environment", cfg.App.Environment,
			)

			// Telemetry comes first so module instruments bind to the real providers
			stopTelemetry := initTelemetry(ctx, cfg, log)
			defer stopTelemetry()

			mono, err := start(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer mono.Close()

			sr := mono.Services()

			healthServer := health.NewServer(cfg.Server.HealthPort, version, log)
			clients := chainDI.GetClients(sr)
			for _, id := range clients.ChainIDs() {
				healthServer.RegisterCheck("rpc:"+strconv.FormatUint(id, 10), func(ctx context.Context) (bool, string) {
					return clients.Ping(ctx, id)
				})
			}
			if p, ok := quotingDI.GetSnapshotStore(sr).(interface{ Ping(context.Context) error }); ok {
				healthServer.RegisterCheck("redis", func(ctx context.Context) (bool, string) {
					if err := p.Ping(ctx); err != nil {
						return false, err.Error()
					}
					return true, "ok"
				})
			}
			if err := healthServer.Start(); err != nil {
				log.Warn(ctx, "failed to start health server", "error", err)
			} else {
				log.Info(ctx, "health server started", "port", cfg.Server.HealthPort)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = healthServer.Stop(sctx)
			}()

			opts := []wsapi.Option{wsapi.WithRefresher(quotingDI.GetBlockRefresher(sr))}
			if len(origins) > 0 {
				opts = append(opts, wsapi.WithOriginPatterns(origins...))
			}
			mux := http.NewServeMux()
			mux.Handle("/ws", wsapi.NewServer(quotingDI.GetQuoteService(sr), log, opts...))

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.WSPort),
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			log.Info(ctx, "websocket server started", "port", cfg.Server.WSPort, "path", "/ws")

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("websocket server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info(context.Background(), "shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}

	cmd.Flags().StringSliceVar(&origins, "origin", nil, "Allowed cross-origin host patterns, e.g. app.example.com")
	return cmd
}

// initTelemetry starts tracing and metrics when enabled and returns their
// shutdown.
func initTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	headers := parseHeaders(cfg.Telemetry.OTLPHeaders)
	provider := apm.ParseProvider(cfg.Telemetry.TraceProvider)
	traceProvider, err := apm.NewTraceProvider(ctx, log, apm.Config{
		Provider:    provider,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     headers,
	})
	if err != nil {
		log.Error(ctx, "tracing disabled", "error", err)
		traceProvider = apm.Noop()
	}
	log.Info(ctx, "tracing initialized", "provider", provider, "endpoint", cfg.Telemetry.OTLPEndpoint)

	metricOpts := []metrics.Option{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithPrometheus(),
	}
	if endpoint := cfg.Telemetry.OTLPEndpoint; provider != apm.ZipkinProvider && endpoint != "" {
		insecure := strings.HasPrefix(endpoint, "http://")
		metricOpts = append(metricOpts,
			metrics.WithCollector(endpoint, headers, insecure))
	}
	meterProvider, err := metrics.NewMetricProvider(ctx, metricOpts...)
	if err != nil {
		log.Error(ctx, "metrics disabled", "error", err)
		return func() { _ = traceProvider.Stop() }
	}

	promCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := metrics.ServePrometheusMetrics(promCtx, log, cfg.Telemetry.PrometheusPort); err != nil {
			log.Error(promCtx, "prometheus server stopped", "error", err)
		}
	}()
	log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)

	return func() {
		cancel()
		sctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		_ = meterProvider.Shutdown(sctx)
		_ = traceProvider.Stop()
	}
}

// parseHeaders reads "k1=v1,k2=v2".
func parseHeaders(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			out[k] = v
		}
	}
	return out
}
