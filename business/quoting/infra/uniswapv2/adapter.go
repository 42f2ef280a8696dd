// Package uniswapv2 quotes and builds swaps against constant-product routers.
package uniswapv2

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/business/quoting/infra/evm"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/logger"
)

const (
	// ProtocolName is the adapter key in config and snapshots.
	ProtocolName = "uniswap-v2"

	tracerName      = "github.com/fd1az/swap-quoter/business/quoting/infra/uniswapv2"
	deadlineHorizon = 20 * time.Minute

	// routers expose no gas estimate
	swapGas   = 150_000
	gasBuffer = 30_000
)

var _ app.Adapter = (*Adapter)(nil)

// Adapter is the Uniswap V2 style liquidity source.
type Adapter struct {
	caller *evm.Caller
	pools  *evm.PoolReader
	logger logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time
}

// NewAdapter creates the adapter.
func NewAdapter(caller *evm.Caller, log logger.LoggerInterface) *Adapter {
	return &Adapter{
		caller: caller,
		pools:  evm.NewPoolReader(caller),
		logger: log,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

// ProtocolName implements app.Adapter.
func (a *Adapter) ProtocolName() string { return ProtocolName }

// SupportedChains implements app.Adapter.
func (a *Adapter) SupportedChains() []uint64 { return evm.DeployedChains() }

// SimulateQuote implements app.Adapter.
func (a *Adapter) SimulateQuote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	if err := req.Validate(a.SupportedChains()); err != nil {
		return domain.QuoteResult{}, err
	}
	chainID := req.ChainID()
	d, err := evm.DeploymentFor(chainID)
	if err != nil {
		return domain.QuoteResult{}, err
	}
	path := []common.Address{evm.PoolToken(req.TokenIn, d), evm.PoolToken(req.TokenOut, d)}
	if path[0] == path[1] {
		return domain.QuoteResult{}, apperror.New(apperror.CodeNoRoute,
			apperror.WithContext("wrapping is not a pool swap"))
	}

	ctx, span := a.tracer.Start(ctx, "uniswapv2.simulate_quote",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(chainID)),
			attribute.String("router", d.V2Router.Hex()),
			attribute.String("amount_in", req.AmountIn.String()),
		),
	)
	defer span.End()

	out, err := a.caller.Call(ctx, chainID, d.V2Router, evm.V2Router, "getAmountsOut", req.AmountIn, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "getAmountsOut failed")
		// a revert or undecodable answer means the router has no pair
		if evm.IsRevert(err) || errors.Is(err, evm.ErrUndecodable) {
			return domain.QuoteResult{}, apperror.New(apperror.CodeNoRoute,
				apperror.WithCause(err),
				apperror.WithContext(path[0].Hex()+"->"+path[1].Hex()))
		}
		return domain.QuoteResult{}, err
	}

	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return domain.QuoteResult{}, apperror.New(apperror.CodeNoRoute,
			apperror.WithContext("unexpected getAmountsOut result"))
	}

	res := domain.QuoteResult{
		Protocol:    ProtocolName,
		AmountOut:   amounts[len(amounts)-1],
		GasEstimate: swapGas,
		Route:       []string{req.TokenIn.Symbol(), req.TokenOut.Symbol()},
	}

	reserveIn, reserveOut, err := a.pools.V2Reserves(ctx, chainID, d.V2Router, path[0], path[1])
	if err != nil {
		a.logger.Debug(ctx, "price impact unavailable", "protocol", ProtocolName, "error", err)
	} else {
		res.PriceImpact = domain.PriceImpact(domain.ConstantProductSpotOut(req.AmountIn, reserveIn, reserveOut), res.AmountOut)
	}

	span.SetAttributes(attribute.String("amount_out", res.AmountOut.String()))
	span.SetStatus(codes.Ok, "quoted")
	return res, nil
}

// BuildExecution implements app.Adapter. Native input or output uses the
// router's ETH entry points so the wallet never handles the wrapped token.
func (a *Adapter) BuildExecution(ctx context.Context, req domain.QuoteRequest, quote domain.QuoteResult) (domain.SwapExecutionParams, error) {
	if err := req.Validate(a.SupportedChains()); err != nil {
		return domain.SwapExecutionParams{}, err
	}
	if req.Recipient == nil {
		return domain.SwapExecutionParams{}, apperror.Validation(apperror.CodeRequiredField, "recipient")
	}
	d, err := evm.DeploymentFor(req.ChainID())
	if err != nil {
		return domain.SwapExecutionParams{}, err
	}

	path := []common.Address{evm.PoolToken(req.TokenIn, d), evm.PoolToken(req.TokenOut, d)}
	minOut := domain.ApplySlippage(quote.AmountOut, req.Slippage)
	deadline := req.DeadlineOr(a.now(), deadlineHorizon)

	var (
		data  []byte
		value *big.Int
	)
	switch {
	case req.TokenIn.IsNative():
		data, err = evm.V2Router.Pack("swapExactETHForTokens", minOut, path, *req.Recipient, deadline)
		value = req.AmountIn
	case req.TokenOut.IsNative():
		data, err = evm.V2Router.Pack("swapExactTokensForETH", req.AmountIn, minOut, path, *req.Recipient, deadline)
	default:
		data, err = evm.V2Router.Pack("swapExactTokensForTokens", req.AmountIn, minOut, path, *req.Recipient, deadline)
	}
	if err != nil {
		return domain.SwapExecutionParams{}, apperror.Internal(apperror.CodeInternalError, "encode v2 swap", err)
	}

	return domain.NewExecution(d.V2Router, data, value, quote.GasEstimate+gasBuffer), nil
}
