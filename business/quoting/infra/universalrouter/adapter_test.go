package universalrouter

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

func deployment(t *testing.T) evm.Deployment {
	t.Helper()
	d, err := evm.DeploymentFor(asset.ChainIDEthereum)
	require.NoError(t, err)
	return d
}

func newAdapter(chain *evmtest.Chain) *Adapter {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	a := NewAdapter(evm.NewCaller(chain, "ur", log), nil, log)
	a.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return a
}

func request(in, out *asset.Asset) domain.QuoteRequest {
	return domain.QuoteRequest{
		TokenIn:  in,
		TokenOut: out,
		AmountIn: big.NewInt(1_000_000),
		Slippage: decimal.RequireFromString("0.005"),
	}
}

type executeCall struct {
	commands []byte
	inputs   [][]byte
	deadline *big.Int
}

func decodeExecute(t *testing.T, data []byte) executeCall {
	t.Helper()
	method := evm.UniversalRouter.Methods["execute"]
	require.Equal(t, method.ID, data[:4])
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return executeCall{commands: args[0].([]byte), inputs: args[1].([][]byte), deadline: args[2].(*big.Int)}
}

func TestSimulateQuote_BestOfAllTiers(t *testing.T) {
	outs := map[uint32]int64{500: 100, 3000: 300, 10000: 200}

	chain := evmtest.NewChain()
	chain.Handle(deployment(t).QuoterV2, evm.QuoterV2, "quoteExactInputSingle", func(args []any) ([]any, error) {
		p := *abi.ConvertType(args[0], new(evm.QuoteExactInputSingleParams)).(*evm.QuoteExactInputSingleParams)
		return []any{big.NewInt(outs[uint32(p.Fee.Uint64())]), big.NewInt(0), uint32(0), big.NewInt(100_000)}, nil
	})

	res, err := newAdapter(chain).SimulateQuote(context.Background(), request(asset.USDC, asset.WETH))
	require.NoError(t, err)
	assert.Equal(t, domain.FeeTierMedium, res.FeeTier)
	assert.Equal(t, int64(300), res.AmountOut.Int64())
	assert.Equal(t, ProtocolName, res.Protocol)
	assert.Equal(t, 3, chain.Calls("quoteExactInputSingle"))
}

func TestSimulateQuote_NoPool(t *testing.T) {
	_, err := newAdapter(evmtest.NewChain()).SimulateQuote(context.Background(), request(asset.USDC, asset.WETH))
	assert.Equal(t, apperror.CodeNoPoolFound, apperror.GetCode(err))
}

func TestBuildExecution_TokenIn(t *testing.T) {
	d := deployment(t)
	quote := domain.QuoteResult{AmountOut: big.NewInt(1_000_000), GasEstimate: 100_000, FeeTier: domain.FeeTierLow}

	params, err := newAdapter(evmtest.NewChain()).BuildExecution(context.Background(), request(asset.USDC, asset.WETH), quote)
	require.NoError(t, err)
	assert.Equal(t, d.UniversalRouter, params.To)
	assert.Equal(t, uint64(120_000), params.GasLimit)
	assert.Zero(t, params.ValueInt().Sign())

	call := decodeExecute(t, params.Data)
	assert.Equal(t, []byte{CommandV3SwapExactIn}, call.commands)
	assert.Equal(t, int64(1_700_000_000+30*60), call.deadline.Int64())
	require.Len(t, call.inputs, 1)

	args, err := V3SwapExactInArgs.Unpack(call.inputs[0])
	require.NoError(t, err)
	assert.Equal(t, MsgSender, args[0])
	assert.Equal(t, int64(1_000_000), args[1].(*big.Int).Int64())
	assert.Equal(t, int64(995_000), args[2].(*big.Int).Int64())
	assert.Equal(t, evm.EncodeV3Path(asset.AddrUSDCEthereum, 500, asset.AddrWETHEthereum), args[3])
	assert.Equal(t, false, args[4])
}

func TestBuildExecution_NativeInWrapsFirst(t *testing.T) {
	recipient := common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	req := request(asset.ETH, asset.USDC)
	req.Recipient = &recipient

	params, err := newAdapter(evmtest.NewChain()).BuildExecution(context.Background(), req,
		domain.QuoteResult{AmountOut: big.NewInt(2_000), GasEstimate: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), params.ValueInt().Int64())
	assert.Equal(t, uint64(12), params.GasLimit)

	call := decodeExecute(t, params.Data)
	assert.Equal(t, []byte{CommandWrapETH, CommandV3SwapExactIn}, call.commands)
	require.Len(t, call.inputs, 2)

	wrap, err := WrapETHArgs.Unpack(call.inputs[0])
	require.NoError(t, err)
	assert.Equal(t, AddressThis, wrap[0])

	swap, err := V3SwapExactInArgs.Unpack(call.inputs[1])
	require.NoError(t, err)
	assert.Equal(t, recipient, swap[0])
	// default tier when the quote has none
	assert.Equal(t, evm.EncodeV3Path(asset.AddrWETHEthereum, 3000, asset.AddrUSDCEthereum), swap[3])
}
