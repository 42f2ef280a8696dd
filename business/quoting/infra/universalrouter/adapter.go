// Package universalrouter quotes V3 pools through QuoterV2 and builds
// swaps as Universal Router command batches.
package universalrouter

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
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
	ProtocolName = "universal-router"

	tracerName      = "github.com/fd1az/swap-quoter/business/quoting/infra/universalrouter"
	deadlineHorizon = 30 * time.Minute
)

// Router commands.
const (
	CommandV3SwapExactIn byte = 0x00
	CommandWrapETH       byte = 0x0b
)

// Router recipient placeholders.
var (
	MsgSender   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	AddressThis = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

var (
	addressT, _ = abi.NewType("address", "", nil)
	uint256T, _ = abi.NewType("uint256", "", nil)
	bytesT, _   = abi.NewType("bytes", "", nil)
	boolT, _    = abi.NewType("bool", "", nil)

	// V3SwapExactInArgs is (recipient, amountIn, amountOutMin, path, payerIsUser).
	V3SwapExactInArgs = abi.Arguments{{Type: addressT}, {Type: uint256T}, {Type: uint256T}, {Type: bytesT}, {Type: boolT}}

	// WrapETHArgs is (recipient, amountMin).
	WrapETHArgs = abi.Arguments{{Type: addressT}, {Type: uint256T}}
)

var _ app.Adapter = (*Adapter)(nil)

// Adapter is the Universal Router liquidity source. It quotes every fee
// tier and keeps the best.
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
		tiers:  app.NewFeeTierScanner(app.ScanBestOfAll, tiers, log),
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

	ctx, span := a.tracer.Start(ctx, "universalrouter.simulate_quote",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(chainID)),
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

	if sqrtPrice, err := a.pools.V3SqrtPrice(ctx, chainID, d.QuoterV2, tokenIn, tokenOut, uint32(res.FeeTier)); err == nil {
		spot := domain.ConcentratedSpotOut(req.AmountIn, sqrtPrice, tokenIn, tokenOut, res.FeeTier)
		res.PriceImpact = domain.PriceImpact(spot, res.AmountOut)
	}

	span.SetAttributes(attribute.Int("fee_tier", int(res.FeeTier)))
	span.SetStatus(codes.Ok, "quoted")
	return res, nil
}

// BuildExecution implements app.Adapter. A missing recipient pays out to
// the transaction sender. Native input is wrapped by the router first.
func (a *Adapter) BuildExecution(ctx context.Context, req domain.QuoteRequest, quote domain.QuoteResult) (domain.SwapExecutionParams, error) {
	if err := req.Validate(a.SupportedChains()); err != nil {
		return domain.SwapExecutionParams{}, err
	}
	d, err := evm.DeploymentFor(req.ChainID())
	if err != nil {
		return domain.SwapExecutionParams{}, err
	}

	fee := quote.FeeTier
	if fee == domain.FeeTierNone {
		fee = domain.FeeTierMedium
	}
	path := evm.EncodeV3Path(evm.PoolToken(req.TokenIn, d), uint32(fee), evm.PoolToken(req.TokenOut, d))

	var (
		commands []byte
		inputs   [][]byte
		value    *big.Int
	)
	if req.TokenIn.IsNative() {
		wrap, err := WrapETHArgs.Pack(AddressThis, req.AmountIn)
		if err != nil {
			return domain.SwapExecutionParams{}, apperror.Internal(apperror.CodeInternalError, "encode WRAP_ETH", err)
		}
		commands = append(commands, CommandWrapETH)
		inputs = append(inputs, wrap)
		value = req.AmountIn
	}

	swap, err := V3SwapExactInArgs.Pack(
		req.RecipientOr(MsgSender),
		req.AmountIn,
		domain.ApplySlippage(quote.AmountOut, req.Slippage),
		path,
		false,
	)
	if err != nil {
		return domain.SwapExecutionParams{}, apperror.Internal(apperror.CodeInternalError, "encode V3_SWAP_EXACT_IN", err)
	}
	commands = append(commands, CommandV3SwapExactIn)
	inputs = append(inputs, swap)

	data, err := evm.UniversalRouter.Pack("execute", commands, inputs, req.DeadlineOr(a.now(), deadlineHorizon))
	if err != nil {
		return domain.SwapExecutionParams{}, apperror.Internal(apperror.CodeInternalError, "encode execute", err)
	}

	return domain.NewExecution(d.UniversalRouter, data, value, quote.GasEstimate*120/100), nil
}
