// Package chain implements the chain bounded context: RPC access, gas prices
// and head watching for every configured EVM chain.
package chain

import (
	"context"

	"github.com/fd1az/swap-quoter/business/chain/app"
	chainDI "github.com/fd1az/swap-quoter/business/chain/di"
	"github.com/fd1az/swap-quoter/business/chain/infra/ethereum"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/di"
	"github.com/fd1az/swap-quoter/internal/logger"
	"github.com/fd1az/swap-quoter/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.Clients, func(sr di.ServiceRegistry) *ethereum.Clients {
		cfg := sr.Get(monolith.ConfigKey).(*config.Config)
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)
		return ethereum.NewClients(cfg.Chains, log)
	})

	di.RegisterToken(c, chainDI.GasOracle, func(sr di.ServiceRegistry) *ethereum.GasOracle {
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)

		oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(), chainDI.GetClients(sr), log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, chainDI.HeadWatcher, func(sr di.ServiceRegistry) *ethereum.HeadWatcher {
		cfg := sr.Get(monolith.ConfigKey).(*config.Config)
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)

		w, err := ethereum.NewHeadWatcher(cfg.Chains, chainDI.GetClients(sr), log)
		if err != nil {
			panic("failed to create head watcher: " + err.Error())
		}
		return w
	})

	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		registry := sr.Get(monolith.AssetRegistryKey).(*asset.Registry)
		return app.NewChainService(chainDI.GetHeadWatcher(sr), chainDI.GetGasOracle(sr), registry)
	})

	return nil
}

// Startup registers chain resources for shutdown.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.OnClose(chainDI.GetClients(mono.Services()))
	mono.OnClose(chainDI.GetGasOracle(mono.Services()))

	mono.Logger().Info(ctx, "chain module started", "chains", len(mono.Config().Chains))
	return nil
}
