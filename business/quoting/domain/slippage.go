package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/internal/asset"
)

const bpsDenominator = 10000

// SlippageBps converts a fraction to whole basis points, truncating.
func SlippageBps(slippage decimal.Decimal) int64 {
	bps := slippage.Shift(4).Truncate(0).IntPart()
	switch {
	case bps < 0:
		return 0
	case bps > bpsDenominator:
		return bpsDenominator
	}
	return bps
}

// ApplySlippage returns the minimum acceptable output:
// amountOut - floor(amountOut * bps / 10000). Integer math only.
func ApplySlippage(amountOut *big.Int, slippage decimal.Decimal) *big.Int {
	if amountOut == nil {
		return new(big.Int)
	}
	cut := new(big.Int).Mul(amountOut, big.NewInt(SlippageBps(slippage)))
	cut.Quo(cut, big.NewInt(bpsDenominator))
	return new(big.Int).Sub(amountOut, cut)
}

// QuoteDisplay is the human-readable rendering of one quote. None of these
// strings feed back into execution amounts.
type QuoteDisplay struct {
	AmountOut       string   `json:"amountOut"`
	MinAmountOut    *big.Int `json:"minAmountOut"`
	MinAmountOutFmt string   `json:"minAmountOutFormatted"`
	EffectivePrice  string   `json:"effectivePrice"`
	InversePrice    string   `json:"inversePrice"`
}

// displayPlaces is the rounding used for every displayed amount and price.
const displayPlaces = 6

// FormatQuote renders a result for the request that produced it.
func FormatQuote(req QuoteRequest, result QuoteResult) QuoteDisplay {
	minOut := ApplySlippage(result.AmountOut, req.Slippage)
	out := asset.FromRaw(req.TokenOut, result.AmountOut)

	d := QuoteDisplay{
		AmountOut:       out.ToDecimal().StringFixed(displayPlaces),
		MinAmountOut:    minOut,
		MinAmountOutFmt: asset.FromRaw(req.TokenOut, minOut).ToDecimal().StringFixed(displayPlaces),
	}

	price, err := asset.EffectivePrice(asset.FromRaw(req.TokenIn, req.AmountIn), out)
	if err == nil {
		d.EffectivePrice = price.StringFixed(displayPlaces)
		d.InversePrice = price.Invert().StringFixed(displayPlaces)
	}
	return d
}
