package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// ExecutionBuilder turns a live quote into swap calldata.
type ExecutionBuilder struct {
	adapters map[string]Adapter
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

// NewExecutionBuilder indexes adapters by protocol name.
func NewExecutionBuilder(adapters []Adapter, log logger.LoggerInterface) *ExecutionBuilder {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.ProtocolName()] = a
	}
	return &ExecutionBuilder{
		adapters: m,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

// Build encodes the swap for protocol. The quote must be a Success in snap;
// min-out is recomputed from req, so a slippage change after quoting applies.
func (b *ExecutionBuilder) Build(ctx context.Context, protocol string, req domain.QuoteRequest, snap *domain.AggregationSnapshot) (domain.SwapExecutionParams, error) {
	ctx, span := b.tracer.Start(ctx, "quoting.build_execution",
		trace.WithAttributes(attribute.String("protocol", protocol)),
	)
	defer span.End()

	quote, ok := snap.SuccessFor(protocol)
	if !ok {
		err := apperror.New(apperror.CodeStaleQuote,
			apperror.WithContext("no live quote from "+protocol))
		span.SetStatus(codes.Error, "stale quote")
		return domain.SwapExecutionParams{}, err
	}

	adapter, ok := b.adapters[protocol]
	if !ok {
		return domain.SwapExecutionParams{}, apperror.NotFound(apperror.CodeNotFound, "adapter "+protocol)
	}

	params, err := adapter.BuildExecution(ctx, req, quote)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		b.logger.Warn(ctx, "build execution failed", "protocol", protocol, "error", err)
		return domain.SwapExecutionParams{}, err
	}

	span.SetAttributes(
		attribute.String("to", params.To.Hex()),
		attribute.Int64("gas_limit", int64(params.GasLimit)),
	)
	return params, nil
}
