package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

var arbUSDC = asset.NewToken(asset.ChainIDArbitrum, common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), "USDC", "USD Coin", 6)

func usdcToWeth(amount int64) QuoteRequest {
	return QuoteRequest{
		TokenIn:  asset.USDC,
		TokenOut: asset.WETH,
		AmountIn: big.NewInt(amount),
		Slippage: decimal.RequireFromString("0.005"),
	}
}

func TestQuoteRequest_Validate(t *testing.T) {
	supported := []uint64{asset.ChainIDEthereum, asset.ChainIDArbitrum}

	tests := []struct {
		name   string
		mutate func(r *QuoteRequest)
		chains []uint64
		want   apperror.Code
	}{
		{name: "valid", mutate: func(*QuoteRequest) {}},
		{name: "zero amount", mutate: func(r *QuoteRequest) { r.AmountIn = big.NewInt(0) }, want: apperror.CodeInvalidAmount},
		{name: "nil amount", mutate: func(r *QuoteRequest) { r.AmountIn = nil }, want: apperror.CodeInvalidAmount},
		{name: "negative slippage", mutate: func(r *QuoteRequest) { r.Slippage = decimal.NewFromFloat(-0.01) }, want: apperror.CodeInvalidSlippage},
		{name: "slippage above one", mutate: func(r *QuoteRequest) { r.Slippage = decimal.NewFromFloat(1.01) }, want: apperror.CodeInvalidSlippage},
		{name: "slippage of one is allowed", mutate: func(r *QuoteRequest) { r.Slippage = decimal.NewFromInt(1) }},
		{name: "unsupported chain", mutate: func(*QuoteRequest) {}, chains: []uint64{asset.ChainIDBSC}, want: apperror.CodeUnsupportedChain},
		{name: "cross chain", mutate: func(r *QuoteRequest) { r.TokenOut = arbUSDC }, want: apperror.CodeCrossChainNotSupported},
		{name: "identical tokens", mutate: func(r *QuoteRequest) { r.TokenOut = asset.USDC }, want: apperror.CodeIdenticalTokens},
		{name: "missing token", mutate: func(r *QuoteRequest) { r.TokenOut = nil }, want: apperror.CodeRequiredField},
		{
			name: "amount is checked before chain",
			mutate: func(r *QuoteRequest) {
				r.AmountIn = big.NewInt(0)
				r.TokenOut = arbUSDC
			},
			chains: []uint64{asset.ChainIDBSC},
			want:   apperror.CodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := usdcToWeth(1_000_000)
			tt.mutate(&req)

			chains := supported
			if tt.chains != nil {
				chains = tt.chains
			}

			err := req.Validate(chains)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, apperror.GetCode(err))
		})
	}
}

func TestQuoteRequest_IdenticalNativeSentinels(t *testing.T) {
	eeee := asset.NewToken(asset.ChainIDEthereum, asset.NativeSentinel, "ETH", "Ether", 18)
	req := QuoteRequest{TokenIn: asset.ETH, TokenOut: eeee, AmountIn: big.NewInt(1)}

	err := req.Validate([]uint64{asset.ChainIDEthereum})
	assert.Equal(t, apperror.CodeIdenticalTokens, apperror.GetCode(err))
}

func TestQuoteRequest_Key(t *testing.T) {
	a := usdcToWeth(1_000_000)
	b := usdcToWeth(1_000_000)
	b.Slippage = decimal.RequireFromString("0.0050")

	assert.Equal(t, a.Key(), b.Key(), "equal slippage written differently must hash the same")

	c := usdcToWeth(1_000_001)
	assert.NotEqual(t, a.Key(), c.Key())

	d := usdcToWeth(1_000_000)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	d.Recipient = &recipient
	assert.NotEqual(t, a.Key(), d.Key())
}

func TestQuoteRequest_DeadlineOr(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	req := usdcToWeth(1)

	assert.Equal(t, int64(1_700_001_200), req.DeadlineOr(now, 20*time.Minute).Int64())

	explicit := time.Unix(1_800_000_000, 0)
	req.Deadline = &explicit
	assert.Equal(t, int64(1_800_000_000), req.DeadlineOr(now, 20*time.Minute).Int64())
}
