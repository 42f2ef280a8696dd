package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/internal/asset"
)

// GasPrice is a suggested gas price for one chain.
type GasPrice struct {
	ChainID   uint64
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(chainID uint64, wei *big.Int) *GasPrice {
	return &GasPrice{
		ChainID:   chainID,
		Wei:       new(big.Int).Set(wei),
		Timestamp: time.Now(),
	}
}

// Gwei returns the price in gwei for display and metrics.
func (g *GasPrice) Gwei() float64 {
	f, _ := decimal.NewFromBigInt(g.Wei, -9).Float64()
	return f
}

// Cost returns gas * price in wei.
func (g *GasPrice) Cost(gas uint64) *big.Int {
	return new(big.Int).Mul(g.Wei, new(big.Int).SetUint64(gas))
}

// NetworkFee prices a gas amount in the chain's native coin.
func NetworkFee(gas uint64, price *GasPrice, native *asset.Asset) asset.Amount {
	return asset.NewAmount(native, price.Cost(gas))
}
