package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PriceImpact is (expected - actual) / expected, floored at zero. It is null
// when no expected output could be derived.
func PriceImpact(expected, actual *big.Int) decimal.NullDecimal {
	if expected == nil || actual == nil || expected.Sign() <= 0 {
		return decimal.NullDecimal{}
	}
	e := decimal.NewFromBigInt(expected, 0)
	impact := e.Sub(decimal.NewFromBigInt(actual, 0)).DivRound(e, 8)
	if impact.IsNegative() {
		impact = decimal.Zero
	}
	return decimal.NewNullDecimal(impact)
}

// ConstantProductSpotOut is the output at the pool's spot price after the
// 0.3% LP fee: amountIn * reserveOut / reserveIn * 997 / 1000.
func ConstantProductSpotOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if reserveIn == nil || reserveIn.Sign() == 0 || reserveOut == nil {
		return nil
	}
	out := new(big.Int).Mul(amountIn, reserveOut)
	out.Mul(out, big.NewInt(997))
	return out.Quo(out, new(big.Int).Mul(reserveIn, big.NewInt(1000)))
}

// ConcentratedSpotOut is the output at the pool's current sqrtPriceX96 after
// the tier fee. Token order follows the pool: token0 sorts lower.
func ConcentratedSpotOut(amountIn, sqrtPriceX96 *big.Int, tokenIn, tokenOut common.Address, fee FeeTier) *big.Int {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return nil
	}
	priceX192 := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)

	out := new(big.Int)
	if tokenIn.Cmp(tokenOut) < 0 {
		// token1 per token0
		out.Mul(amountIn, priceX192)
		out.Quo(out, q192)
	} else {
		out.Mul(amountIn, q192)
		out.Quo(out, priceX192)
	}

	out.Mul(out, big.NewInt(int64(1_000_000-fee)))
	return out.Quo(out, big.NewInt(1_000_000))
}
