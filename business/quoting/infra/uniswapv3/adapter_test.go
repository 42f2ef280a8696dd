package uniswapv3

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/business/quoting/infra/evm"
	"github.com/fd1az/swap-quoter/business/quoting/infra/evm/evmtest"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/logger"
)

var (
	factoryAddr = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	poolAddr    = common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8")
)

func mainnet(t *testing.T) evm.Deployment {
	t.Helper()
	d, err := evm.DeploymentFor(asset.ChainIDEthereum)
	require.NoError(t, err)
	return d
}

func newAdapter(chain *evmtest.Chain) *Adapter {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	a := NewAdapter(evm.NewCaller(chain, "v3", log), nil, log)
	a.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return a
}

// quoteByTier answers only the listed tiers.
func quoteByTier(out map[uint32]int64) evmtest.HandlerFunc {
	return func(args []any) ([]any, error) {
		p := *abi.ConvertType(args[0], new(evm.QuoteExactInputSingleParams)).(*evm.QuoteExactInputSingleParams)
		amount, ok := out[uint32(p.Fee.Uint64())]
		if !ok {
			return nil, evmtest.ErrReverted
		}
		return []any{big.NewInt(amount), big.NewInt(0), uint32(2), big.NewInt(120_000)}, nil
	}
}

func usdcToWeth() domain.QuoteRequest {
	return domain.QuoteRequest{
		TokenIn:  asset.USDC,
		TokenOut: asset.WETH,
		AmountIn: big.NewInt(1_000_000_000),
		Slippage: decimal.RequireFromString("0.005"),
	}
}

func TestSimulateQuote_FirstSuccessfulTier(t *testing.T) {
	d := mainnet(t)
	chain := evmtest.NewChain()
	chain.Handle(d.QuoterV2, evm.QuoterV2, "quoteExactInputSingle", quoteByTier(map[uint32]int64{
		3000:  300_000_000_000_000,
		10000: 999_000_000_000_000,
	}))

	res, err := newAdapter(chain).SimulateQuote(context.Background(), usdcToWeth())
	require.NoError(t, err)
	assert.Equal(t, domain.FeeTierMedium, res.FeeTier)
	assert.Equal(t, int64(300_000_000_000_000), res.AmountOut.Int64())
	assert.Equal(t, uint64(120_000), res.GasEstimate)
	assert.Equal(t, ProtocolName, res.Protocol)
	assert.Equal(t, []string{"USDC", "WETH"}, res.Route)
	assert.False(t, res.PriceImpact.Valid, "no pool state scripted")
	assert.Equal(t, 2, chain.Calls("quoteExactInputSingle"))
}

func TestSimulateQuote_NoPool(t *testing.T) {
	_, err := newAdapter(evmtest.NewChain()).SimulateQuote(context.Background(), usdcToWeth())
	assert.Equal(t, apperror.CodeNoPoolFound, apperror.GetCode(err))
}

func TestSimulateQuote_PriceImpactFromSlot0(t *testing.T) {
	d := mainnet(t)
	// 1 token0 = 1 token1 in raw units
	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)

	chain := evmtest.NewChain()
	chain.Handle(d.QuoterV2, evm.QuoterV2, "quoteExactInputSingle", quoteByTier(map[uint32]int64{500: 990_000_000}))
	chain.Returns(d.QuoterV2, evm.QuoterV2, "factory", factoryAddr)
	chain.Returns(factoryAddr, evm.V3Factory, "getPool", poolAddr)
	chain.Returns(poolAddr, evm.V3Pool, "slot0",
		sqrtPrice, big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true)

	res, err := newAdapter(chain).SimulateQuote(context.Background(), usdcToWeth())
	require.NoError(t, err)
	require.True(t, res.PriceImpact.Valid)
	// spot after the 0.05% fee is 999_500_000
	assert.Equal(t, "0.00950475", res.PriceImpact.Decimal.String())
}

func TestSimulateQuote_Validation(t *testing.T) {
	req := usdcToWeth()
	req.AmountIn = big.NewInt(0)
	_, err := newAdapter(evmtest.NewChain()).SimulateQuote(context.Background(), req)
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.GetCode(err))
}

func TestSimulateQuote_WrapIsNoRoute(t *testing.T) {
	req := usdcToWeth()
	req.TokenIn = asset.ETH
	_, err := newAdapter(evmtest.NewChain()).SimulateQuote(context.Background(), req)
	assert.Equal(t, apperror.CodeNoRoute, apperror.GetCode(err))
}

func TestBuildExecution(t *testing.T) {
	d := mainnet(t)
	recipient := common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	req := usdcToWeth()
	req.Recipient = &recipient
	quote := domain.QuoteResult{
		AmountOut:   big.NewInt(300_000_000_000_000),
		GasEstimate: 120_000,
		FeeTier:     domain.FeeTierLow,
	}

	params, err := newAdapter(evmtest.NewChain()).BuildExecution(context.Background(), req, quote)
	require.NoError(t, err)
	assert.Equal(t, d.SwapRouter, params.To)
	assert.Equal(t, uint64(170_000), params.GasLimit)
	assert.Zero(t, params.ValueInt().Sign())

	method := evm.SwapRouter.Methods["exactInputSingle"]
	args, err := method.Inputs.Unpack(params.Data[4:])
	require.NoError(t, err)
	p := *abi.ConvertType(args[0], new(ExactInputSingleParams)).(*ExactInputSingleParams)

	assert.Equal(t, asset.AddrUSDCEthereum, p.TokenIn)
	assert.Equal(t, asset.AddrWETHEthereum, p.TokenOut)
	assert.Equal(t, int64(500), p.Fee.Int64())
	assert.Equal(t, recipient, p.Recipient)
	assert.Equal(t, int64(1_700_000_000+20*60), p.Deadline.Int64())
	assert.Equal(t, "298500000000000", p.AmountOutMinimum.String())
}

func TestBuildExecution_NativeInAndDefaultFee(t *testing.T) {
	recipient := common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	req := domain.QuoteRequest{
		TokenIn:   asset.ETH,
		TokenOut:  asset.USDC,
		AmountIn:  big.NewInt(1e18),
		Slippage:  decimal.RequireFromString("0.01"),
		Recipient: &recipient,
	}

	params, err := newAdapter(evmtest.NewChain()).BuildExecution(context.Background(), req,
		domain.QuoteResult{AmountOut: big.NewInt(3_000_000_000), GasEstimate: 1})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1e18), params.ValueInt())

	args, err := evm.SwapRouter.Methods["exactInputSingle"].Inputs.Unpack(params.Data[4:])
	require.NoError(t, err)
	p := *abi.ConvertType(args[0], new(ExactInputSingleParams)).(*ExactInputSingleParams)
	assert.Equal(t, int64(3000), p.Fee.Int64())
	assert.Equal(t, asset.AddrWETHEthereum, p.TokenIn)
}

func TestBuildExecution_RequiresRecipient(t *testing.T) {
	_, err := newAdapter(evmtest.NewChain()).BuildExecution(context.Background(), usdcToWeth(),
		domain.QuoteResult{AmountOut: big.NewInt(1)})
	assert.Equal(t, apperror.CodeRequiredField, apperror.GetCode(err))
}

func TestBuildExecution_Router02WrapsDeadlineInMulticall(t *testing.T) {
	reg := asset.DefaultRegistry()
	usdc, ok := reg.Lookup(asset.ChainIDBase, "USDC")
	require.True(t, ok)
	weth, ok := reg.Lookup(asset.ChainIDBase, "WETH")
	require.True(t, ok)

	d, err := evm.DeploymentFor(asset.ChainIDBase)
	require.NoError(t, err)
	require.True(t, d.Router02)

	recipient := common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	req := domain.QuoteRequest{
		TokenIn:   usdc,
		TokenOut:  weth,
		AmountIn:  big.NewInt(1_000_000_000),
		Slippage:  decimal.RequireFromString("0.005"),
		Recipient: &recipient,
	}

	params, err := newAdapter(evmtest.NewChain()).BuildExecution(context.Background(), req,
		domain.QuoteResult{AmountOut: big.NewInt(300_000_000_000_000), FeeTier: domain.FeeTierLow})
	require.NoError(t, err)
	assert.Equal(t, d.SwapRouter, params.To)

	multicall := evm.SwapRouter02.Methods["multicall"]
	assert.Equal(t, multicall.ID, []byte(params.Data[:4]))
	outer, err := multicall.Inputs.Unpack(params.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000+20*60), outer[0].(*big.Int).Int64())

	calls := outer[1].([][]byte)
	require.Len(t, calls, 1)
	swap := evm.SwapRouter02.Methods["exactInputSingle"]
	assert.Equal(t, swap.ID, calls[0][:4])
	args, err := swap.Inputs.Unpack(calls[0][4:])
	require.NoError(t, err)
	p := *abi.ConvertType(args[0], new(ExactInputSingleParams02)).(*ExactInputSingleParams02)
	assert.Equal(t, weth.Address(), p.TokenOut)
	assert.Equal(t, recipient, p.Recipient)
	assert.Equal(t, "298500000000000", p.AmountOutMinimum.String())
}
