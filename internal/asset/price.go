package asset

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of fixed-point decimals a Price keeps.
const PricePrecision = 18

// ErrZeroInput is returned when pricing a swap with nothing going in.
var ErrZeroInput = errors.New("asset: zero input amount")

// Price is how many whole quote tokens one whole base token buys, kept as
// an integer scaled by 10^PricePrecision.
type Price struct {
	scaled *big.Int
	base   *Asset
	quote  *Asset
}

// EffectivePrice is the rate realised by swapping in for out.
func EffectivePrice(in, out Amount) (Price, error) {
	if in.Asset() == nil || out.Asset() == nil {
		return Price{}, ErrNilAsset
	}
	if in.IsZero() {
		return Price{}, ErrZeroInput
	}

	// out * 10^(precision + inDecimals - outDecimals) / in
	num, den := out.Raw(), in.Raw()
	if shift := PricePrecision + int(in.Asset().Decimals()) - int(out.Asset().Decimals()); shift >= 0 {
		num.Mul(num, pow10(shift))
	} else {
		den.Mul(den, pow10(-shift))
	}
	return Price{scaled: num.Quo(num, den), base: in.Asset(), quote: out.Asset()}, nil
}

// Invert swaps base and quote. Inverting a zero price yields zero.
func (p Price) Invert() Price {
	inv := Price{scaled: new(big.Int), base: p.quote, quote: p.base}
	if p.IsZero() {
		return inv
	}
	inv.scaled.Quo(pow10(2*PricePrecision), p.scaled)
	return inv
}

func (p Price) IsZero() bool { return p.scaled == nil || p.scaled.Sign() == 0 }

// Pair renders "BASE/QUOTE".
func (p Price) Pair() string {
	sym := func(a *Asset) string {
		if a == nil {
			return "???"
		}
		return a.Symbol()
	}
	return sym(p.base) + "/" + sym(p.quote)
}

func (p Price) StringFixed(places int32) string { return p.decimal().StringFixed(places) }

func (p Price) String() string { return p.decimal().String() + " " + p.Pair() }

func (p Price) decimal() decimal.Decimal {
	if p.scaled == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.scaled, -PricePrecision)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
