// Package oneinch is the off-chain aggregator source backed by the 1inch
// swap API.
package oneinch

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// ProtocolName is the adapter key in config and snapshots.
const ProtocolName = "1inch"

var supportedChains = []uint64{
	asset.ChainIDEthereum,
	asset.ChainIDArbitrum,
	asset.ChainIDPolygon,
	asset.ChainIDBase,
	asset.ChainIDBSC,
}

var _ app.Adapter = (*Adapter)(nil)

// Adapter quotes through the 1inch API. It does no fee-tier probing.
type Adapter struct {
	client *Client
	logger logger.LoggerInterface
}

// NewAdapter creates the adapter on top of client.
func NewAdapter(client *Client, log logger.LoggerInterface) *Adapter {
	return &Adapter{client: client, logger: log}
}

// ProtocolName implements app.Adapter.
func (a *Adapter) ProtocolName() string { return ProtocolName }

// SupportedChains implements app.Adapter.
func (a *Adapter) SupportedChains() []uint64 { return supportedChains }

// SimulateQuote implements app.Adapter.
func (a *Adapter) SimulateQuote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	if err := req.Validate(supportedChains); err != nil {
		return domain.QuoteResult{}, err
	}

	ctx, span := a.client.tracer.Start(ctx, "oneinch.simulate_quote",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(req.ChainID())),
			attribute.String("amount_in", req.AmountIn.String()),
		),
	)
	defer span.End()

	resp, err := a.client.Quote(ctx, req.ChainID(), baseQuery(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return domain.QuoteResult{}, err
	}

	amountOut, ok := new(big.Int).SetString(resp.ToTokenAmount, 10)
	if !ok {
		return domain.QuoteResult{}, apperror.New(apperror.CodeUpstreamError,
			apperror.WithContext("toTokenAmount "+strconv.Quote(resp.ToTokenAmount)))
	}

	res := domain.QuoteResult{
		Protocol:  ProtocolName,
		AmountOut: amountOut,
		Route:     routeNames(resp.Protocols),
	}
	if gas, err := strconv.ParseUint(resp.EstimatedGas.String(), 10, 64); err == nil {
		res.GasEstimate = gas
	}
	if impact, err := decimal.NewFromString(resp.PriceImpact.String()); err == nil {
		res.PriceImpact = decimal.NewNullDecimal(impact)
	}
	if len(res.Route) == 0 {
		res.Route = []string{req.TokenIn.Symbol(), req.TokenOut.Symbol()}
	}

	span.SetAttributes(attribute.String("amount_out", amountOut.String()))
	span.SetStatus(codes.Ok, "quoted")
	return res, nil
}

// BuildExecution implements app.Adapter. The API builds the transaction;
// the sender must be known.
func (a *Adapter) BuildExecution(ctx context.Context, req domain.QuoteRequest, _ domain.QuoteResult) (domain.SwapExecutionParams, error) {
	if err := req.Validate(supportedChains); err != nil {
		return domain.SwapExecutionParams{}, err
	}
	if req.Recipient == nil {
		return domain.SwapExecutionParams{}, apperror.Validation(apperror.CodeRequiredField, "recipient")
	}

	query := baseQuery(req)
	query["fromAddress"] = req.Recipient.Hex()
	query["slippage"] = req.Slippage.Mul(decimal.NewFromInt(100)).String()

	resp, err := a.client.Swap(ctx, req.ChainID(), query)
	if err != nil {
		return domain.SwapExecutionParams{}, err
	}

	if !common.IsHexAddress(resp.Tx.To) {
		return domain.SwapExecutionParams{}, apperror.New(apperror.CodeUpstreamError,
			apperror.WithContext("tx.to "+strconv.Quote(resp.Tx.To)))
	}
	data, err := hexutil.Decode(resp.Tx.Data)
	if err != nil {
		return domain.SwapExecutionParams{}, apperror.New(apperror.CodeUpstreamError,
			apperror.WithCause(err),
			apperror.WithContext("tx.data"))
	}
	value := new(big.Int)
	if resp.Tx.Value != "" {
		if _, ok := value.SetString(resp.Tx.Value, 0); !ok {
			return domain.SwapExecutionParams{}, apperror.New(apperror.CodeUpstreamError,
				apperror.WithContext("tx.value "+strconv.Quote(resp.Tx.Value)))
		}
	}
	gas, _ := strconv.ParseUint(resp.Tx.Gas.String(), 10, 64)

	return domain.NewExecution(common.HexToAddress(resp.Tx.To), data, value, gas), nil
}

func baseQuery(req domain.QuoteRequest) map[string]string {
	return map[string]string{
		"fromTokenAddress": apiAddress(req.TokenIn).Hex(),
		"toTokenAddress":   apiAddress(req.TokenOut).Hex(),
		"amount":           req.AmountIn.String(),
	}
}

// apiAddress spells native coins with the 0xEeee... sentinel.
func apiAddress(a *asset.Asset) common.Address {
	if a.IsNative() {
		return asset.NativeSentinel
	}
	return a.Address()
}
