package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FeeTier is a concentrated-liquidity pool fee in hundredths of a bip
// (500 = 0.05%). Zero means the source has no fee tier.
type FeeTier uint32

// Standard Uniswap V3 tiers.
const (
	FeeTierNone   FeeTier = 0
	FeeTierLow    FeeTier = 500
	FeeTierMedium FeeTier = 3000
	FeeTierHigh   FeeTier = 10000
)

// DefaultFeeTiers is the probing order used when nothing is configured.
var DefaultFeeTiers = []FeeTier{FeeTierLow, FeeTierMedium, FeeTierHigh}

// Fraction returns the fee as a fraction (3000 -> 0.003).
func (f FeeTier) Fraction() decimal.Decimal {
	return decimal.New(int64(f), -6)
}

// String renders the tier as a percentage.
func (f FeeTier) String() string {
	if f == FeeTierNone {
		return "-"
	}
	return f.Fraction().Shift(2).String() + "%"
}

// BigInt returns the tier as the uint24 big.Int the contracts take.
func (f FeeTier) BigInt() *big.Int {
	return big.NewInt(int64(f))
}

// QuoteResult is one source's answer to one request.
type QuoteResult struct {
	AmountOut   *big.Int            `json:"amountOut"`
	GasEstimate uint64              `json:"gasEstimate"`
	Protocol    string              `json:"protocol"`
	FeeTier     FeeTier             `json:"feeTier,omitempty"`
	PriceImpact decimal.NullDecimal `json:"priceImpact"`
	Route       []string            `json:"route"`
}

// Clone returns a deep copy so holders never share big.Int storage.
func (q QuoteResult) Clone() QuoteResult {
	c := q
	if q.AmountOut != nil {
		c.AmountOut = new(big.Int).Set(q.AmountOut)
	}
	c.Route = append([]string(nil), q.Route...)
	return c
}

// Better reports whether q ranks strictly above other: greater AmountOut,
// then lower GasEstimate. Equal quotes are not better, so the earlier one wins.
func (q QuoteResult) Better(other QuoteResult) bool {
	switch q.AmountOut.Cmp(other.AmountOut) {
	case 1:
		return true
	case -1:
		return false
	}
	return q.GasEstimate < other.GasEstimate
}
