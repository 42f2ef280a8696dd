package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/business/chain/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/circuitbreaker"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// HeaderReader fetches block headers; nil number means latest.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// HeaderReaderResolver maps a chain id to a header source.
type HeaderReaderResolver interface {
	HeaderReader(ctx context.Context, chainID uint64) (HeaderReader, error)
}

type headWatcherMetrics struct {
	heads           metric.Int64Counter
	subscribeErrors metric.Int64Counter
	headLatency     metric.Float64Histogram
}

// HeadWatcher streams chain heads. It subscribes over WebSocket when a
// ws_url is configured and falls back to polling the RPC client otherwise.
type HeadWatcher struct {
	chains  map[uint64]config.ChainConfig
	readers HeaderReaderResolver
	logger  logger.LoggerInterface

	bufferSize     int
	reconnectDelay time.Duration

	tracer  trace.Tracer
	metrics *headWatcherMetrics
}

// NewHeadWatcher creates a head watcher over the configured chains.
func NewHeadWatcher(chains []config.ChainConfig, readers HeaderReaderResolver, log logger.LoggerInterface) (*HeadWatcher, error) {
	byID := make(map[uint64]config.ChainConfig, len(chains))
	for _, ch := range chains {
		byID[ch.ID] = ch
	}

	w := &HeadWatcher{
		chains:         byID,
		readers:        readers,
		logger:         log,
		bufferSize:     16,
		reconnectDelay: 5 * time.Second,
		tracer:         otel.Tracer(tracerName),
	}
	if err := w.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return w, nil
}

func (w *HeadWatcher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	w.metrics = &headWatcherMetrics{}

	w.metrics.heads, err = meter.Int64Counter(
		"chain_heads_received_total",
		metric.WithDescription("Total chain heads received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	w.metrics.subscribeErrors, err = meter.Int64Counter(
		"chain_subscribe_errors_total",
		metric.WithDescription("Total head subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	w.metrics.headLatency, err = meter.Float64Histogram(
		"chain_head_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	return err
}

// Heads emits every new head of chainID until ctx is done.
func (w *HeadWatcher) Heads(ctx context.Context, chainID uint64) (<-chan *domain.Block, error) {
	ch, ok := w.chains[chainID]
	if !ok {
		return nil, apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext("no chain configured for head watching"))
	}

	out := make(chan *domain.Block, w.bufferSize)
	go func() {
		defer close(out)
		w.run(ctx, ch, out)
	}()
	return out, nil
}

func (w *HeadWatcher) run(ctx context.Context, ch config.ChainConfig, out chan<- *domain.Block) {
	var last uint64
	for ctx.Err() == nil {
		if ch.WSURL != "" {
			if err := w.subscribe(ctx, ch, out, &last); err != nil {
				w.metrics.subscribeErrors.Add(ctx, 1)
				w.logger.Warn(ctx, "head subscription failed, polling instead",
					"chain_id", ch.ID, "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}

		reader, err := w.readers.HeaderReader(ctx, ch.ID)
		if err != nil {
			w.logger.Error(ctx, "no header reader", "chain_id", ch.ID, "error", err)
			if !sleepCtx(ctx, w.reconnectDelay) {
				return
			}
			continue
		}
		w.poll(ctx, ch, reader, out, &last)
	}
}

// subscribe follows newHeads over WebSocket until the subscription fails.
func (w *HeadWatcher) subscribe(ctx context.Context, ch config.ChainConfig, out chan<- *domain.Block, last *uint64) error {
	client, err := ethclient.DialContext(ctx, ch.WSURL)
	if err != nil {
		return apperror.New(apperror.CodeEthereumConnectionFailed, apperror.WithCause(err))
	}
	defer client.Close()

	headers := make(chan *types.Header, w.bufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return apperror.New(apperror.CodeEthereumSubscribeFailed, apperror.WithCause(err))
	}
	defer sub.Unsubscribe()

	w.logger.Info(ctx, "subscribed to new heads", "chain_id", ch.ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case header := <-headers:
			if header != nil {
				w.emit(ctx, ch.ID, header, domain.HeadModeSubscription, out, last)
			}
		}
	}
}

// poll reads the latest header every PollInterval. It returns only when ctx
// is done or after repeated failures so the caller can retry the subscription.
func (w *HeadWatcher) poll(ctx context.Context, ch config.ChainConfig, reader HeaderReader, out chan<- *domain.Block, last *uint64) {
	interval := ch.PollInterval
	if interval <= 0 {
		interval = 12 * time.Second
	}

	cbCfg := circuitbreaker.DefaultConfig(fmt.Sprintf("head-poll-%d", ch.ID))
	cb := circuitbreaker.New[*types.Header](cbCfg)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		header, err := cb.Execute(func() (*types.Header, error) {
			return reader.HeaderByNumber(ctx, nil)
		})
		switch {
		case err != nil:
			failures++
			w.logger.Debug(ctx, "head poll failed", "chain_id", ch.ID, "error", err)
			if ch.WSURL != "" && failures >= 3 {
				return
			}
		case header != nil:
			failures = 0
			w.emit(ctx, ch.ID, header, domain.HeadModePolling, out, last)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *HeadWatcher) emit(ctx context.Context, chainID uint64, header *types.Header, mode domain.HeadMode, out chan<- *domain.Block, last *uint64) {
	if header.Number == nil || header.Number.Uint64() <= *last {
		return
	}
	block := headerToBlock(chainID, header)
	*last = block.Number

	attrs := metric.WithAttributes(
		attribute.Int64("chain_id", int64(chainID)),
		attribute.String("mode", string(mode)),
	)
	w.metrics.heads.Add(ctx, 1, attrs)
	w.metrics.headLatency.Record(ctx, float64(time.Since(block.Timestamp).Milliseconds()), attrs)

	select {
	case out <- block:
		w.logger.Debug(ctx, "head received", "chain_id", chainID, "number", block.Number)
	default:
		w.logger.Warn(ctx, "head dropped, buffer full", "chain_id", chainID, "number", block.Number)
	}
}

func headerToBlock(chainID uint64, header *types.Header) *domain.Block {
	return &domain.Block{
		ChainID:   chainID,
		Number:    header.Number.Uint64(),
		Hash:      header.Hash(),
		Timestamp: time.Unix(int64(header.Time), 0),
		BaseFee:   header.BaseFee,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
