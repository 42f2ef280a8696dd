package app

import (
	"context"

	"github.com/fd1az/swap-quoter/business/chain/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

// ChainService coordinates head watching and gas pricing across chains.
type ChainService struct {
	heads    HeadSource
	gas      GasOracle
	registry *asset.Registry
}

// NewChainService creates a new ChainService.
func NewChainService(heads HeadSource, gas GasOracle, registry *asset.Registry) *ChainService {
	return &ChainService{
		heads:    heads,
		gas:      gas,
		registry: registry,
	}
}

// WatchHeads streams new heads of a chain.
func (s *ChainService) WatchHeads(ctx context.Context, chainID uint64) (<-chan *domain.Block, error) {
	return s.heads.Heads(ctx, chainID)
}

// GasPrice retrieves the current gas price of a chain.
func (s *ChainService) GasPrice(ctx context.Context, chainID uint64) (*domain.GasPrice, error) {
	return s.gas.GasPrice(ctx, chainID)
}

// NetworkFee prices gas units in the chain's native coin.
func (s *ChainService) NetworkFee(ctx context.Context, chainID uint64, gas uint64) (asset.Amount, error) {
	native, ok := s.registry.GetNative(chainID)
	if !ok {
		return asset.Amount{}, apperror.NotFound(apperror.CodeTokenNotFound, "native coin unknown for chain")
	}
	price, err := s.gas.GasPrice(ctx, chainID)
	if err != nil {
		return asset.Amount{}, err
	}
	return domain.NetworkFee(gas, price, native), nil
}
