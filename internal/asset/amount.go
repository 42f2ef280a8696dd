package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: more fractional digits than the token has")
)

// Amount is a non-negative quantity of one token in its smallest unit.
// Values are immutable: the raw integer is copied in and out.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount wraps raw smallest units. It panics on a nil asset or a
// negative value; both are programming errors at every call site.
func NewAmount(a *Asset, raw *big.Int) Amount {
	switch {
	case a == nil:
		panic(ErrNilAsset)
	case raw == nil:
		raw = new(big.Int)
	case raw.Sign() < 0:
		panic(ErrNegativeAmount)
	}
	return Amount{raw: new(big.Int).Set(raw), asset: a}
}

// FromRaw is NewAmount for values read off the wire, where nil means zero.
func FromRaw(a *Asset, raw *big.Int) Amount { return NewAmount(a, raw) }

// Zero is an empty amount of a.
func Zero(a *Asset) Amount { return NewAmount(a, nil) }

// ParseString reads a human decimal such as "1.5" and scales it by the
// token's decimals. Fractions finer than one smallest unit are rejected.
func ParseString(a *Asset, s string) (Amount, error) {
	if a == nil {
		return Amount{}, ErrNilAsset
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("asset: parse %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	units := d.Shift(int32(a.Decimals()))
	if !units.IsInteger() {
		return Amount{}, ErrTooManyDecimals
	}
	return NewAmount(a, units.BigInt()), nil
}

func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a Amount) Asset() *Asset { return a.asset }

func (a Amount) IsZero() bool { return a.raw == nil || a.raw.Sign() == 0 }

// ToDecimal scales down to whole tokens. Display only.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

// String renders "1.5 ETH".
func (a Amount) String() string { return a.format(a.ToDecimal().String()) }

// StringFixed renders the amount rounded to places.
func (a Amount) StringFixed(places int32) string {
	return a.format(a.ToDecimal().StringFixed(places))
}

func (a Amount) format(v string) string {
	if a.asset == nil {
		return v
	}
	return v + " " + a.asset.Symbol()
}
