// Package quoting implements the quoting bounded context: liquidity source
// adapters, aggregation rounds, snapshot caching and execution building.
package quoting

import (
	"context"
	"fmt"
	"io"
	"time"

	chainDI "github.com/fd1az/swap-quoter/business/chain/di"
	"github.com/fd1az/swap-quoter/business/chain/infra/ethereum"
	"github.com/fd1az/swap-quoter/business/quoting/app"
	quotingDI "github.com/fd1az/swap-quoter/business/quoting/di"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/business/quoting/infra/evm"
	"github.com/fd1az/swap-quoter/business/quoting/infra/oneinch"
	"github.com/fd1az/swap-quoter/business/quoting/infra/snapshotstore"
	"github.com/fd1az/swap-quoter/business/quoting/infra/uniswapv2"
	"github.com/fd1az/swap-quoter/business/quoting/infra/uniswapv3"
	"github.com/fd1az/swap-quoter/business/quoting/infra/universalrouter"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/di"
	"github.com/fd1az/swap-quoter/internal/logger"
	"github.com/fd1az/swap-quoter/internal/monolith"
)

const redisConnectTimeout = 5 * time.Second

// Module implements the quoting bounded context. It depends on the chain
// module for node access and new heads.
type Module struct{}

// RegisterServices registers all quoting services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, quotingDI.Adapters, func(sr di.ServiceRegistry) []app.Adapter {
		cfg := sr.Get(monolith.ConfigKey).(*config.Config)
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)

		adapters, err := BuildAdapters(cfg, chainDI.GetClients(sr), log)
		if err != nil {
			panic("failed to create adapters: " + err.Error())
		}
		return adapters
	})

	di.RegisterToken(c, quotingDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		cfg := sr.Get(monolith.ConfigKey).(*config.Config)
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)

		coord, err := app.NewCoordinator(quotingDI.GetAdapters(sr), CoordinatorConfig(cfg.Quoting), log)
		if err != nil {
			panic("failed to create coordinator: " + err.Error())
		}
		return coord
	})

	di.RegisterToken(c, quotingDI.ExecutionBuilder, func(sr di.ServiceRegistry) *app.ExecutionBuilder {
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)
		return app.NewExecutionBuilder(quotingDI.GetAdapters(sr), log)
	})

	di.RegisterToken(c, quotingDI.TokenReader, func(sr di.ServiceRegistry) *evm.TokenReader {
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)
		return evm.NewTokenReader(evm.NewCaller(chainDI.GetClients(sr), "erc20", log))
	})

	di.RegisterToken(c, quotingDI.SnapshotStore, func(sr di.ServiceRegistry) app.SnapshotStore {
		cfg := sr.Get(monolith.ConfigKey).(*config.Config)
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)
		return newSnapshotStore(cfg.Cache, log)
	})

	di.RegisterToken(c, quotingDI.BlockRefresher, func(sr di.ServiceRegistry) *app.BlockRefresher {
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)
		return app.NewBlockRefresher(log)
	})

	di.RegisterToken(c, quotingDI.QuoteService, func(sr di.ServiceRegistry) *app.QuoteService {
		cfg := sr.Get(monolith.ConfigKey).(*config.Config)
		log := sr.Get(monolith.LoggerKey).(logger.LoggerInterface)
		registry := sr.Get(monolith.AssetRegistryKey).(*asset.Registry)

		coord := quotingDI.GetCoordinator(sr)
		cached := app.NewCachedAggregator(coord, quotingDI.GetSnapshotStore(sr), cfg.Quoting.SnapshotTTL, log)

		return app.NewQuoteService(app.QuoteServiceConfig{
			Aggregator:      cached,
			Coordinator:     coord,
			Builder:         quotingDI.GetExecutionBuilder(sr),
			Registry:        registry,
			Metadata:        quotingDI.GetTokenReader(sr),
			DefaultSlippage: cfg.Quoting.DefaultSlippageDecimal(),
			Debounce:        cfg.Quoting.Debounce,
		}, log)
	})

	return nil
}

// Startup resolves the quoting graph and, when configured, re-quotes live
// sessions on every new block.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	cfg := mono.Config()
	log := mono.Logger()

	svc := quotingDI.GetQuoteService(sr)
	if closer, ok := quotingDI.GetSnapshotStore(sr).(io.Closer); ok {
		mono.OnClose(closer)
	}

	if cfg.Quoting.RefreshOnBlock {
		refresher := quotingDI.GetBlockRefresher(sr)
		chains := chainDI.GetChainService(sr)
		for _, ch := range cfg.Chains {
			heads, err := chains.WatchHeads(ctx, ch.ID)
			if err != nil {
				log.Warn(ctx, "head watch unavailable, block refresh disabled", "chain_id", ch.ID, "error", err)
				continue
			}
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case b, ok := <-heads:
						if !ok {
							return
						}
						refresher.OnHead(b.ChainID)
					}
				}
			}()
		}
	}

	log.Info(ctx, "quoting module started",
		"adapters", svc.Protocols(),
		"cache", cfg.Cache.Backend,
		"refresh_on_block", cfg.Quoting.RefreshOnBlock,
	)
	return nil
}

// BuildAdapters creates the configured adapters in config order.
func BuildAdapters(cfg *config.Config, clients *ethereum.Clients, log logger.LoggerInterface) ([]app.Adapter, error) {
	tiers := FeeTiers(cfg.Quoting.FeeTiers)

	adapters := make([]app.Adapter, 0, len(cfg.Quoting.Adapters))
	for _, name := range cfg.Quoting.Adapters {
		switch name {
		case config.AdapterUniswapV3:
			adapters = append(adapters, uniswapv3.NewAdapter(evm.NewCaller(clients, name, log), tiers, log))
		case config.AdapterUniswapV2:
			adapters = append(adapters, uniswapv2.NewAdapter(evm.NewCaller(clients, name, log), log))
		case config.AdapterUniversalRouter:
			adapters = append(adapters, universalrouter.NewAdapter(evm.NewCaller(clients, name, log), tiers, log))
		case config.AdapterOneInch:
			client, err := oneinch.NewClient(oneinch.ClientConfig{
				BaseURL:           cfg.OneInch.BaseURL,
				APIKey:            cfg.OneInch.APIKey,
				RequestsPerMinute: cfg.OneInch.RequestsPerMinute,
				Timeout:           cfg.OneInch.Timeout,
			}, log)
			if err != nil {
				return nil, fmt.Errorf("1inch client: %w", err)
			}
			adapters = append(adapters, oneinch.NewAdapter(client, log))
		default:
			return nil, fmt.Errorf("unknown adapter %q", name)
		}
	}
	return adapters, nil
}

// CoordinatorConfig maps the quoting section onto round limits.
func CoordinatorConfig(q config.QuotingConfig) app.CoordinatorConfig {
	cc := app.DefaultCoordinatorConfig()
	if q.RoundTimeout > 0 {
		cc.RoundTimeout = q.RoundTimeout
	}
	if q.DefaultTimeout > 0 {
		cc.DefaultTimeout = q.DefaultTimeout
	}
	cc.Timeouts = q.Timeouts
	return cc
}

// FeeTiers converts configured tiers, falling back to the standard set.
func FeeTiers(raw []uint32) []domain.FeeTier {
	if len(raw) == 0 {
		return domain.DefaultFeeTiers
	}
	tiers := make([]domain.FeeTier, len(raw))
	for i, t := range raw {
		tiers[i] = domain.FeeTier(t)
	}
	return tiers
}

// newSnapshotStore prefers redis when configured and falls back to memory
// when it cannot be reached.
func newSnapshotStore(cfg config.CacheConfig, log logger.LoggerInterface) app.SnapshotStore {
	if cfg.Backend != config.CacheBackendRedis {
		return snapshotstore.NewMemory()
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	store, err := snapshotstore.NewRedis(ctx, snapshotstore.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn(ctx, "redis snapshot store unavailable, using memory", "addr", cfg.RedisAddr, "error", err)
		return snapshotstore.NewMemory()
	}
	log.Info(ctx, "redis snapshot store connected", "addr", cfg.RedisAddr)
	return store
}
