package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/business/chain/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/cache"
	"github.com/fd1az/swap-quoter/internal/circuitbreaker"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// GasPricerResolver maps a chain id to its gas price source.
type GasPricerResolver interface {
	GasPricer(ctx context.Context, chainID uint64) (ethereum.GasPricer, error)
}

// GasOracleConfig bounds how fresh and how high a served price can be.
type GasOracleConfig struct {
	CacheTTL    time.Duration
	MaxGasPrice *big.Int // suggestions above this are clamped
}

// DefaultGasOracleConfig caches for about one mainnet block and clamps
// at 500 gwei.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:    12 * time.Second,
		MaxGasPrice: new(big.Int).Mul(big.NewInt(500), big.NewInt(1e9)),
	}
}

// GasOracle serves suggested gas prices per chain through a short cache,
// with one breaker per chain in front of the node.
type GasOracle struct {
	cfg    GasOracleConfig
	source GasPricerResolver
	logger logger.LoggerInterface
	prices *cache.Cache[uint64, *domain.GasPrice]

	breakers sync.Map // chain id -> *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	lookups metric.Int64Counter
	gwei    metric.Float64Gauge
}

func NewGasOracle(cfg GasOracleConfig, source GasPricerResolver, log logger.LoggerInterface) (*GasOracle, error) {
	meter := otel.Meter(meterName)
	lookups, err := meter.Int64Counter("quoter.gas.lookups",
		metric.WithDescription("Gas price lookups by chain and cache result"))
	if err != nil {
		return nil, fmt.Errorf("gas lookups counter: %w", err)
	}
	gwei, err := meter.Float64Gauge("quoter.gas.price",
		metric.WithDescription("Last fetched gas price"),
		metric.WithUnit("gwei"))
	if err != nil {
		return nil, fmt.Errorf("gas price gauge: %w", err)
	}

	return &GasOracle{
		cfg:     cfg,
		source:  source,
		logger:  log,
		prices:  cache.New[uint64, *domain.GasPrice](time.Minute),
		tracer:  otel.Tracer(tracerName),
		lookups: lookups,
		gwei:    gwei,
	}, nil
}

func (g *GasOracle) breaker(chainID uint64) *circuitbreaker.CircuitBreaker[*big.Int] {
	if cb, ok := g.breakers.Load(chainID); ok {
		return cb.(*circuitbreaker.CircuitBreaker[*big.Int])
	}
	cfg := circuitbreaker.DefaultConfig(fmt.Sprintf("gas-oracle-%d", chainID))
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		g.logger.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	cb, _ := g.breakers.LoadOrStore(chainID, circuitbreaker.New[*big.Int](cfg))
	return cb.(*circuitbreaker.CircuitBreaker[*big.Int])
}

// GasPrice returns the chain's suggested price, fetching at most once per
// CacheTTL.
func (g *GasOracle) GasPrice(ctx context.Context, chainID uint64) (*domain.GasPrice, error) {
	chain := attribute.Int64("chain_id", int64(chainID))
	ctx, span := g.tracer.Start(ctx, "gas.price", trace.WithAttributes(chain))
	defer span.End()

	price, hit := g.prices.Get(ctx, chainID)
	g.lookups.Add(ctx, 1, metric.WithAttributes(chain, attribute.Bool("cached", hit)))
	if hit {
		return price, nil
	}

	pricer, err := g.source.GasPricer(ctx, chainID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	wei, err := g.breaker(chainID).Execute(func() (*big.Int, error) {
		return pricer.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggest gas price")
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("gas price on chain %d", chainID)))
	}

	if ceiling := g.cfg.MaxGasPrice; ceiling != nil && wei.Cmp(ceiling) > 0 {
		g.logger.Warn(ctx, "gas price clamped", "chain_id", chainID, "wei", wei.String(), "max", ceiling.String())
		wei = new(big.Int).Set(ceiling)
	}

	price = domain.NewGasPrice(chainID, wei)
	g.prices.Set(ctx, chainID, price, g.cfg.CacheTTL)
	g.gwei.Record(ctx, price.Gwei(), metric.WithAttributes(chain))
	span.SetAttributes(attribute.Float64("gwei", price.Gwei()))
	return price, nil
}

// Close stops the cache janitor.
func (g *GasOracle) Close() error {
	g.prices.Close()
	return nil
}
