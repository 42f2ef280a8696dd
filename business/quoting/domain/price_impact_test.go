package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceImpact(t *testing.T) {
	impact := PriceImpact(big.NewInt(1000), big.NewInt(990))
	require.True(t, impact.Valid)
	assert.True(t, impact.Decimal.Equal(decimal.RequireFromString("0.01")), impact.Decimal.String())

	better := PriceImpact(big.NewInt(1000), big.NewInt(1001))
	require.True(t, better.Valid)
	assert.True(t, better.Decimal.IsZero())

	assert.False(t, PriceImpact(nil, big.NewInt(1)).Valid)
	assert.False(t, PriceImpact(big.NewInt(0), big.NewInt(1)).Valid)
}

func TestConstantProductSpotOut(t *testing.T) {
	// 1:2000 pool, 1 unit in -> 2000 * 0.997
	out := ConstantProductSpotOut(big.NewInt(1_000_000), big.NewInt(1_000_000_000), big.NewInt(2_000_000_000_000))
	assert.Equal(t, "1994000000", out.String())

	assert.Nil(t, ConstantProductSpotOut(big.NewInt(1), big.NewInt(0), big.NewInt(1)))
}

func TestConcentratedSpotOut(t *testing.T) {
	low := common.HexToAddress("0x0000000000000000000000000000000000000001")
	high := common.HexToAddress("0x0000000000000000000000000000000000000002")

	// sqrtPriceX96 = 2 * 2^96 means token1/token0 = 4
	sqrtP := new(big.Int).Lsh(big.NewInt(2), 96)

	zeroForOne := ConcentratedSpotOut(big.NewInt(1_000_000), sqrtP, low, high, FeeTierMedium)
	assert.Equal(t, "3988000", zeroForOne.String())

	oneForZero := ConcentratedSpotOut(big.NewInt(1_000_000), sqrtP, high, low, FeeTierMedium)
	assert.Equal(t, "249250", oneForZero.String())

	assert.Nil(t, ConcentratedSpotOut(big.NewInt(1), big.NewInt(0), low, high, FeeTierLow))
}
