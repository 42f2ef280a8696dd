// Package uniswapv3 quotes and builds single-pool swaps on Uniswap V3
// through QuoterV2 and the V3 SwapRouter.
package uniswapv3

import (
	"context"
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
	ProtocolName = "uniswap-v3"

	tracerName      = "github.com/fd1az/swap-quoter/business/quoting/infra/uniswapv3"
	deadlineHorizon = 20 * time.Minute
	gasBuffer       = 50_000
	defaultFee      = domain.FeeTierMedium
)

var _ app.Adapter = (*Adapter)(nil)

// ExactInputSingleParams is the SwapRouter input tuple.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int // uint24
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// ExactInputSingleParams02 is the SwapRouter02 input tuple.
type ExactInputSingleParams02 struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int // uint24
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// encodeSwap packs exactInputSingle for the router deployed on d. SwapRouter02
// takes the deadline through multicall(uint256,bytes[]).
func encodeSwap(d evm.Deployment, p ExactInputSingleParams) ([]byte, error) {
	if !d.Router02 {
		return evm.SwapRouter.Pack("exactInputSingle", p)
	}
	inner, err := evm.SwapRouter02.Pack("exactInputSingle", ExactInputSingleParams02{
		TokenIn:           p.TokenIn,
		TokenOut:          p.TokenOut,
		Fee:               p.Fee,
		Recipient:         p.Recipient,
		AmountIn:          p.AmountIn,
		AmountOutMinimum:  p.AmountOutMinimum,
		SqrtPriceLimitX96: p.SqrtPriceLimitX96,
	})
	if err != nil {
		return nil, err
	}
	return evm.SwapRouter02.Pack("multicall", p.Deadline, [][]byte{inner})
}

// Adapter is the Uniswap V3 liquidity source. It takes the first fee tier
// that quotes.
type Adapter struct {
	quoter *evm.Quoter
	pools  *evm.PoolReader
	tiers  *app.FeeTierScanner
	logger logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time
}

// NewAdapter creates the adapter. Empty tiers fall back to 500/3000/10000.
func NewAdapter(caller *evm.Caller, tiers []domain.FeeTier, log logger.LoggerInterface) *Adapter {
	return &Adapter{
		quoter: evm.NewQuoter(caller),
		pools:  evm.NewPoolReader(caller),
		tiers:  app.NewFeeTierScanner(app.ScanFirstSuccess, tiers, log),
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
	tokenIn, tokenOut := evm.PoolToken(req.TokenIn, d), evm.PoolToken(req.TokenOut, d)
	if tokenIn == tokenOut {
		return domain.QuoteResult{}, apperror.New(apperror.CodeNoRoute,
			apperror.WithContext("wrapping is not a pool swap"))
	}

	ctx, span := a.tracer.Start(ctx, "uniswapv3.simulate_quote",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(chainID)),
			attribute.String("token_in", tokenIn.Hex()),
			attribute.String("token_out", tokenOut.Hex()),
			attribute.String("amount_in", req.AmountIn.String()),
		),
	)
	defer span.End()

	res, err := a.tiers.Scan(ctx, func(ctx context.Context, tier domain.FeeTier) (domain.QuoteResult, error) {
		out, err := a.quoter.QuoteExactInputSingle(ctx, chainID, d.QuoterV2, tokenIn, tokenOut, req.AmountIn, uint32(tier))
		if err != nil {
			return domain.QuoteResult{}, err
		}
		return domain.QuoteResult{AmountOut: out.AmountOut, GasEstimate: out.GasEstimate.Uint64()}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no pool")
		return domain.QuoteResult{}, err
	}

	res.Protocol = ProtocolName
	res.Route = []string{req.TokenIn.Symbol(), req.TokenOut.Symbol()}

	sqrtPrice, err := a.pools.V3SqrtPrice(ctx, chainID, d.QuoterV2, tokenIn, tokenOut, uint32(res.FeeTier))
	if err != nil {
		a.logger.Debug(ctx, "price impact unavailable", "protocol", ProtocolName, "error", err)
	} else {
		spot := domain.ConcentratedSpotOut(req.AmountIn, sqrtPrice, tokenIn, tokenOut, res.FeeTier)
		res.PriceImpact = domain.PriceImpact(spot, res.AmountOut)
	}

	span.SetAttributes(
		attribute.String("amount_out", res.AmountOut.String()),
		attribute.Int("fee_tier", int(res.FeeTier)),
	)
	span.SetStatus(codes.Ok, "quoted")
	return res, nil
}

// BuildExecution implements app.Adapter.
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

	fee := quote.FeeTier
	if fee == domain.FeeTierNone {
		fee = defaultFee
	}

	params := ExactInputSingleParams{
		TokenIn:           evm.PoolToken(req.TokenIn, d),
		TokenOut:          evm.PoolToken(req.TokenOut, d),
		Fee:               fee.BigInt(),
		Recipient:         *req.Recipient,
		Deadline:          req.DeadlineOr(a.now(), deadlineHorizon),
		AmountIn:          req.AmountIn,
		AmountOutMinimum:  domain.ApplySlippage(quote.AmountOut, req.Slippage),
		SqrtPriceLimitX96: big.NewInt(0),
	}
	data, err := encodeSwap(d, params)
	if err != nil {
		return domain.SwapExecutionParams{}, apperror.Internal(apperror.CodeInternalError, "encode exactInputSingle", err)
	}

	var value *big.Int
	if req.TokenIn.IsNative() {
		value = req.AmountIn
	}
	return domain.NewExecution(d.SwapRouter, data, value, quote.GasEstimate+gasBuffer), nil
}
