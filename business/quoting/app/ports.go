// Package app contains application services and port definitions for the quoting context.
package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/asset"
)

// Adapter is one liquidity source.
type Adapter interface {
	// SimulateQuote prices the request without touching chain state.
	SimulateQuote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error)

	// BuildExecution encodes the swap for a quote this adapter produced.
	// The minimum output is derived from req's current slippage.
	BuildExecution(ctx context.Context, req domain.QuoteRequest, quote domain.QuoteResult) (domain.SwapExecutionParams, error)

	SupportedChains() []uint64
	ProtocolName() string
}

// Aggregator runs one aggregation round.
type Aggregator interface {
	Aggregate(ctx context.Context, req domain.QuoteRequest) (*domain.AggregationSnapshot, error)
}

// SnapshotStore keeps recent snapshots by request key.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (*domain.AggregationSnapshot, bool, error)
	Put(ctx context.Context, snap *domain.AggregationSnapshot, ttl time.Duration) error
}

// TokenMetadata reads token metadata from chain for addresses the registry
// does not know.
type TokenMetadata interface {
	Metadata(ctx context.Context, chainID uint64, token common.Address) (*asset.Asset, error)
}
