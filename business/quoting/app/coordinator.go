package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/logger"
)

const meterName = "github.com/fd1az/swap-quoter/business/quoting/app"

// CoordinatorConfig bounds one aggregation round.
type CoordinatorConfig struct {
	RoundTimeout   time.Duration
	DefaultTimeout time.Duration
	Timeouts       map[string]time.Duration // per protocol name
}

// DefaultCoordinatorConfig returns an 8s per-source and 15s round budget.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		RoundTimeout:   15 * time.Second,
		DefaultTimeout: 8 * time.Second,
	}
}

func (c CoordinatorConfig) timeoutFor(protocol string) time.Duration {
	if d, ok := c.Timeouts[protocol]; ok && d > 0 {
		return d
	}
	return c.DefaultTimeout
}

type coordinatorMetrics struct {
	rounds        metric.Int64Counter
	outcomes      metric.Int64Counter
	sourceLatency metric.Float64Histogram
	roundLatency  metric.Float64Histogram
}

// Coordinator fans a request out to every adapter and waits for all of them.
type Coordinator struct {
	adapters []Adapter
	config   CoordinatorConfig
	logger   logger.LoggerInterface

	round atomic.Uint64
	now   func() time.Time

	tracer  trace.Tracer
	metrics *coordinatorMetrics
}

// NewCoordinator creates a coordinator. Adapter order is registration order
// and decides outcome order and final tie-breaks.
func NewCoordinator(adapters []Adapter, cfg CoordinatorConfig, log logger.LoggerInterface) (*Coordinator, error) {
	if len(adapters) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("at least one adapter is required"))
	}
	seen := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		if seen[a.ProtocolName()] {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("duplicate adapter "+a.ProtocolName()))
		}
		seen[a.ProtocolName()] = true
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultCoordinatorConfig().DefaultTimeout
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = DefaultCoordinatorConfig().RoundTimeout
	}

	c := &Coordinator{
		adapters: append([]Adapter(nil), adapters...),
		config:   cfg,
		logger:   log,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *Coordinator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &coordinatorMetrics{}

	c.metrics.rounds, err = meter.Int64Counter(
		"quote_rounds_total",
		metric.WithDescription("Total aggregation rounds"),
		metric.WithUnit("{round}"),
	)
	if err != nil {
		return err
	}

	c.metrics.outcomes, err = meter.Int64Counter(
		"quote_source_outcomes_total",
		metric.WithDescription("Per-source outcomes by protocol and status"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		return err
	}

	c.metrics.sourceLatency, err = meter.Float64Histogram(
		"quote_source_latency_ms",
		metric.WithDescription("Latency of one source quote"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	c.metrics.roundLatency, err = meter.Float64Histogram(
		"quote_round_latency_ms",
		metric.WithDescription("Latency of a full aggregation round"),
		metric.WithUnit("ms"),
	)
	return err
}

// Protocols returns adapter names in registration order.
func (c *Coordinator) Protocols() []string {
	names := make([]string, len(c.adapters))
	for i, a := range c.adapters {
		names[i] = a.ProtocolName()
	}
	return names
}

// Adapters returns the adapters in registration order.
func (c *Coordinator) Adapters() []Adapter {
	return append([]Adapter(nil), c.adapters...)
}

// Aggregate runs one round. When no source succeeds the snapshot is still
// returned, alongside NO_QUOTE_AVAILABLE, so every failure stays inspectable.
func (c *Coordinator) Aggregate(ctx context.Context, req domain.QuoteRequest) (*domain.AggregationSnapshot, error) {
	round := c.NextRound()
	ctx, span := c.tracer.Start(ctx, "quoting.aggregate",
		trace.WithAttributes(
			attribute.Int64("round", int64(round)),
			attribute.Int64("chain_id", int64(req.ChainID())),
			attribute.Int("adapters", len(c.adapters)),
		),
	)
	defer span.End()

	start := c.now()
	outcomes := c.collect(ctx, req)
	snap := domain.NewSnapshot(round, req.Key(), outcomes, c.now())

	c.metrics.roundLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if !snap.HasSuccess() {
		c.metrics.rounds.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "no_quote")))
		err := apperror.New(apperror.CodeNoQuoteAvailable,
			apperror.WithContext(fmt.Sprintf("%d sources failed", len(outcomes))))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no quote")
		c.logger.Warn(ctx, "no source produced a quote", "round", round, "failures", len(outcomes))
		return snap, err
	}

	c.metrics.rounds.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
	span.SetAttributes(
		attribute.String("best_protocol", snap.Best.Protocol),
		attribute.String("best_amount_out", snap.Best.AmountOut.String()),
	)
	span.SetStatus(codes.Ok, "aggregated")
	c.logger.Debug(ctx, "aggregation round complete",
		"round", round,
		"best", snap.Best.Protocol,
		"amount_out", snap.Best.AmountOut.String(),
		"failures", len(snap.Failures()))

	return snap, nil
}

// AllQuotes returns every source's outcome without the aggregate verdict.
func (c *Coordinator) AllQuotes(ctx context.Context, req domain.QuoteRequest) []domain.SourceOutcome {
	ctx, span := c.tracer.Start(ctx, "quoting.all_quotes")
	defer span.End()
	return c.collect(ctx, req)
}

type indexedOutcome struct {
	index   int
	outcome domain.SourceOutcome
}

// NextRound reserves a round number. Rounds answered from the snapshot
// cache draw from the same sequence.
func (c *Coordinator) NextRound() uint64 { return c.round.Add(1) }

// collect waits for every adapter, bounded by the round timeout. Outcomes are
// slotted by registration index, never by completion order.
func (c *Coordinator) collect(ctx context.Context, req domain.QuoteRequest) []domain.SourceOutcome {
	roundCtx, cancel := context.WithTimeout(ctx, c.config.RoundTimeout)
	defer cancel()

	results := make(chan indexedOutcome, len(c.adapters))
	for i, a := range c.adapters {
		go func() {
			results <- indexedOutcome{index: i, outcome: c.quoteSource(roundCtx, a, req)}
		}()
	}

	outcomes := make([]domain.SourceOutcome, len(c.adapters))
	settled := make([]bool, len(c.adapters))
	for remaining := len(c.adapters); remaining > 0; remaining-- {
		select {
		case r := <-results:
			outcomes[r.index] = r.outcome
			settled[r.index] = true
		case <-roundCtx.Done():
			for i, a := range c.adapters {
				if !settled[i] {
					outcomes[i] = domain.Failure(a.ProtocolName(), timeoutError(a.ProtocolName(), roundCtx.Err()))
				}
			}
			return outcomes
		}
	}
	return outcomes
}

type simulation struct {
	result domain.QuoteResult
	err    error
}

// quoteSource runs one adapter under its own timeout and turns every way it
// can end into an outcome.
func (c *Coordinator) quoteSource(ctx context.Context, a Adapter, req domain.QuoteRequest) domain.SourceOutcome {
	protocol := a.ProtocolName()
	timeout := c.config.timeoutFor(protocol)

	ctx, span := c.tracer.Start(ctx, "quoting.source",
		trace.WithAttributes(
			attribute.String("protocol", protocol),
			attribute.Int64("timeout_ms", timeout.Milliseconds()),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan simulation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- simulation{err: apperror.New(apperror.CodeSourcePanic,
					apperror.WithContext(fmt.Sprintf("%v", r)))}
			}
		}()
		res, err := a.SimulateQuote(ctx, req)
		done <- simulation{result: res, err: err}
	}()

	var outcome domain.SourceOutcome
	select {
	case s := <-done:
		outcome = c.toOutcome(protocol, s)
	case <-ctx.Done():
		outcome = domain.Failure(protocol, timeoutError(protocol, ctx.Err()))
	}

	status := "success"
	if !outcome.IsSuccess() {
		status = "failure"
		span.SetStatus(codes.Error, string(outcome.Code()))
		c.logger.Debug(ctx, "source failed", "protocol", protocol, "code", outcome.Code(), "message", outcome.Message())
	} else {
		span.SetStatus(codes.Ok, "quoted")
	}

	attrs := metric.WithAttributes(
		attribute.String("protocol", protocol),
		attribute.String("status", status),
	)
	c.metrics.outcomes.Add(ctx, 1, attrs)
	c.metrics.sourceLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	return outcome
}

func (c *Coordinator) toOutcome(protocol string, s simulation) domain.SourceOutcome {
	if s.err != nil {
		if apperror.GetCode(s.err) != apperror.CodeSourceTimeout && isTimeout(s.err) {
			return domain.Failure(protocol, timeoutError(protocol, s.err))
		}
		return domain.Failure(protocol, s.err)
	}
	if s.result.AmountOut == nil || s.result.AmountOut.Sign() <= 0 {
		return domain.Failure(protocol, apperror.New(apperror.CodeNoRoute,
			apperror.WithContext("source returned no output")))
	}
	// selection and builds match on this name
	s.result.Protocol = protocol
	return domain.Success(protocol, s.result)
}

// isTimeout reports a deadline anywhere in err's chain, including client
// timeouts that adapters wrap in their own error codes.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func timeoutError(protocol string, cause error) error {
	return apperror.New(apperror.CodeSourceTimeout,
		apperror.WithCause(cause),
		apperror.WithContext(protocol))
}
