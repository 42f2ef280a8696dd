package app

import (
	"context"
	"math/big"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/logger"
)

type freshQuotesKey struct{}

// WithFreshQuotes marks ctx so a CachedAggregator asks the sources instead
// of answering from the store. The fresh snapshot is still stored.
func WithFreshQuotes(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshQuotesKey{}, true)
}

func wantsFreshQuotes(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshQuotesKey{}).(bool)
	return fresh
}

// roundSource hands out round numbers, so cache hits stay in sequence with
// live rounds.
type roundSource interface {
	NextRound() uint64
}

// CachedAggregator reuses a snapshot for an identical request within ttl.
// Only snapshots with at least one quote are stored. A hit is answered as a
// new round with its own request id.
type CachedAggregator struct {
	next   Aggregator
	store  SnapshotStore
	ttl    time.Duration
	rounds atomic.Uint64
	logger logger.LoggerInterface
}

// NewCachedAggregator wraps next. ttl <= 0 disables caching.
func NewCachedAggregator(next Aggregator, store SnapshotStore, ttl time.Duration, log logger.LoggerInterface) *CachedAggregator {
	return &CachedAggregator{next: next, store: store, ttl: ttl, logger: log}
}

// Aggregate implements Aggregator.
func (c *CachedAggregator) Aggregate(ctx context.Context, req domain.QuoteRequest) (*domain.AggregationSnapshot, error) {
	if c.ttl <= 0 || c.store == nil {
		return c.next.Aggregate(ctx, req)
	}

	key := req.Key()
	if !wantsFreshQuotes(ctx) {
		snap, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn(ctx, "snapshot store read failed", "error", err)
		} else if ok {
			hit := snap.WithRound(c.nextRound())
			c.logger.Debug(ctx, "snapshot cache hit", "key", key[:12], "round", hit.Round, "cached_round", snap.Round)
			return hit, nil
		}
	}

	snap, err := c.next.Aggregate(ctx, req)
	if err != nil || snap == nil || !snap.HasSuccess() {
		return snap, err
	}
	if err := c.store.Put(ctx, snap, c.ttl); err != nil {
		c.logger.Warn(ctx, "snapshot store write failed", "error", err)
	}
	return snap, nil
}

func (c *CachedAggregator) nextRound() uint64 {
	if rs, ok := c.next.(roundSource); ok {
		return rs.NextRound()
	}
	return c.rounds.Add(1)
}

// QuoteService is the entry point hosts use: token resolution, one-shot
// aggregation, execution building and per-session controllers.
type QuoteService struct {
	aggregator  Aggregator
	coordinator *Coordinator
	builder     *ExecutionBuilder
	registry    *asset.Registry
	metadata    TokenMetadata
	slippage    decimal.Decimal
	debounce    time.Duration
	logger      logger.LoggerInterface
}

// QuoteServiceConfig groups the QuoteService dependencies.
type QuoteServiceConfig struct {
	Aggregator      Aggregator // defaults to Coordinator
	Coordinator     *Coordinator
	Builder         *ExecutionBuilder
	Registry        *asset.Registry
	Metadata        TokenMetadata // optional on-chain fallback
	DefaultSlippage decimal.Decimal
	Debounce        time.Duration
}

// NewQuoteService creates the service.
func NewQuoteService(cfg QuoteServiceConfig, log logger.LoggerInterface) *QuoteService {
	agg := cfg.Aggregator
	if agg == nil {
		agg = cfg.Coordinator
	}
	return &QuoteService{
		aggregator:  agg,
		coordinator: cfg.Coordinator,
		builder:     cfg.Builder,
		registry:    cfg.Registry,
		metadata:    cfg.Metadata,
		slippage:    cfg.DefaultSlippage,
		debounce:    cfg.Debounce,
		logger:      log,
	}
}

// DefaultSlippage returns the configured slippage fraction.
func (s *QuoteService) DefaultSlippage() decimal.Decimal { return s.slippage }

// Protocols returns the adapters in registration order.
func (s *QuoteService) Protocols() []string {
	if s.coordinator == nil {
		return nil
	}
	return s.coordinator.Protocols()
}

// ResolveToken finds a token by symbol, address or "native". Unknown
// addresses are read from chain and remembered.
func (s *QuoteService) ResolveToken(ctx context.Context, chainID uint64, ref string) (*asset.Asset, error) {
	if a, ok := s.registry.Lookup(chainID, ref); ok {
		return a, nil
	}
	if !common.IsHexAddress(ref) || s.metadata == nil {
		return nil, apperror.NotFound(apperror.CodeTokenNotFound,
			ref+" on chain "+strconv.FormatUint(chainID, 10))
	}

	a, err := s.metadata.Metadata(ctx, chainID, common.HexToAddress(ref))
	if err != nil {
		return nil, apperror.New(apperror.CodeTokenNotFound,
			apperror.WithCause(err),
			apperror.WithContext(ref+" on chain "+strconv.FormatUint(chainID, 10)))
	}
	s.logger.Info(ctx, "resolved token from chain", "chain_id", chainID, "symbol", a.Symbol(), "decimals", a.Decimals())
	return s.registry.Remember(a), nil
}

// ParseAmount converts a human amount such as "1.5" to smallest units.
func (s *QuoteService) ParseAmount(token *asset.Asset, human string) (*big.Int, error) {
	amt, err := asset.ParseString(token, human)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidAmount, human)
	}
	return amt.Raw(), nil
}

// Aggregate runs one round, served from the snapshot cache when configured.
func (s *QuoteService) Aggregate(ctx context.Context, req domain.QuoteRequest) (*domain.AggregationSnapshot, error) {
	return s.aggregator.Aggregate(ctx, req)
}

// AllQuotes returns every source's outcome for req.
func (s *QuoteService) AllQuotes(ctx context.Context, req domain.QuoteRequest) []domain.SourceOutcome {
	return s.coordinator.AllQuotes(ctx, req)
}

// Build encodes the swap for protocol against snap.
func (s *QuoteService) Build(ctx context.Context, protocol string, req domain.QuoteRequest, snap *domain.AggregationSnapshot) (domain.SwapExecutionParams, error) {
	return s.builder.Build(ctx, protocol, req, snap)
}

// NewController creates a per-session controller on top of this service.
func (s *QuoteService) NewController(opts ...Option) *Controller {
	base := []Option{WithLogger(s.logger)}
	if s.debounce > 0 {
		base = append(base, WithDebounce(s.debounce))
	}
	return NewController(s.aggregator, s.builder, append(base, opts...)...)
}
