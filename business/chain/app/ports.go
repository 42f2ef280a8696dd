// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"

	"github.com/fd1az/swap-quoter/business/chain/domain"
)

// HeadSource streams new chain heads.
type HeadSource interface {
	// Heads emits every new head of chainID until ctx is done, then closes the channel.
	Heads(ctx context.Context, chainID uint64) (<-chan *domain.Block, error)
}

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	GasPrice(ctx context.Context, chainID uint64) (*domain.GasPrice, error)
}
