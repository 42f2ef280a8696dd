package app

import (
	"context"
	"io"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func usdcToWeth(amount int64) domain.QuoteRequest {
	return domain.QuoteRequest{
		TokenIn:  asset.USDC,
		TokenOut: asset.WETH,
		AmountIn: big.NewInt(amount),
		Slippage: decimal.RequireFromString("0.005"),
	}
}

// fakeAdapter is a scripted liquidity source.
type fakeAdapter struct {
	name   string
	chains []uint64

	out   int64
	gas   uint64
	err   error
	delay time.Duration
	// ignoreCtx makes the fake sleep through cancellation like a hung client.
	ignoreCtx bool
	panics    bool
	// outFor overrides out per request amount.
	outFor func(req domain.QuoteRequest) int64

	calls  atomic.Int32
	builds atomic.Int32
}

func (f *fakeAdapter) ProtocolName() string { return f.name }

func (f *fakeAdapter) SupportedChains() []uint64 {
	if f.chains == nil {
		return []uint64{asset.ChainIDEthereum}
	}
	return f.chains
}

func (f *fakeAdapter) SimulateQuote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	f.calls.Add(1)
	if err := req.Validate(f.SupportedChains()); err != nil {
		return domain.QuoteResult{}, err
	}
	if f.panics {
		panic("adapter exploded")
	}
	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return domain.QuoteResult{}, ctx.Err()
			}
		}
	}
	if f.err != nil {
		return domain.QuoteResult{}, f.err
	}
	out := f.out
	if f.outFor != nil {
		out = f.outFor(req)
	}
	return domain.QuoteResult{
		AmountOut:   big.NewInt(out),
		GasEstimate: f.gas,
		Protocol:    f.name,
		Route:       []string{req.TokenIn.Symbol(), req.TokenOut.Symbol()},
	}, nil
}

func (f *fakeAdapter) BuildExecution(_ context.Context, req domain.QuoteRequest, quote domain.QuoteResult) (domain.SwapExecutionParams, error) {
	f.builds.Add(1)
	if err := req.Validate(f.SupportedChains()); err != nil {
		return domain.SwapExecutionParams{}, err
	}
	minOut := domain.ApplySlippage(quote.AmountOut, req.Slippage)
	return domain.NewExecution(common.HexToAddress("0x00000000000000000000000000000000000000ff"), minOut.Bytes(), nil, quote.GasEstimate+1), nil
}
