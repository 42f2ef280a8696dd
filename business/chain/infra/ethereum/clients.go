// Package ethereum provides EVM node access for every configured chain.
package ethereum

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/logger"
)

const (
	tracerName = "github.com/fd1az/swap-quoter/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/swap-quoter/business/chain/infra/ethereum"
)

// Clients is a registry of RPC clients keyed by chain id. Connections are
// dialed on first use and shared afterwards.
type Clients struct {
	chains map[uint64]config.ChainConfig
	logger logger.LoggerInterface

	mu      sync.Mutex
	clients map[uint64]*ethclient.Client

	tracer trace.Tracer
}

// NewClients creates a registry over the configured chains.
func NewClients(chains []config.ChainConfig, log logger.LoggerInterface) *Clients {
	byID := make(map[uint64]config.ChainConfig, len(chains))
	for _, ch := range chains {
		byID[ch.ID] = ch
	}
	return &Clients{
		chains:  byID,
		logger:  log,
		clients: make(map[uint64]*ethclient.Client),
		tracer:  otel.Tracer(tracerName),
	}
}

// ChainIDs returns the configured chain ids.
func (c *Clients) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(c.chains))
	for id := range c.chains {
		ids = append(ids, id)
	}
	return ids
}

// Client returns the RPC client of a chain, dialing it if needed.
func (c *Clients) Client(ctx context.Context, chainID uint64) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chainID]; ok {
		return client, nil
	}

	ch, ok := c.chains[chainID]
	if !ok {
		return nil, apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext("no rpc configured for chain"))
	}

	ctx, span := c.tracer.Start(ctx, "chain.dial",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(chainID)),
			attribute.String("url", ch.RPCURL),
		),
	)
	defer span.End()

	client, err := ethclient.DialContext(ctx, ch.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to dial "+ch.Name))
	}

	c.clients[chainID] = client
	span.SetStatus(codes.Ok, "connected")
	c.logger.Info(ctx, "rpc client connected", "chain_id", chainID, "name", ch.Name)

	return client, nil
}

// ContractCaller returns a read-only contract caller for a chain.
func (c *Clients) ContractCaller(chainID uint64) (ethereum.ContractCaller, error) {
	client, err := c.Client(context.Background(), chainID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GasPricer returns the gas price source of a chain.
func (c *Clients) GasPricer(ctx context.Context, chainID uint64) (ethereum.GasPricer, error) {
	client, err := c.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// HeaderReader returns a header source used for head polling.
func (c *Clients) HeaderReader(ctx context.Context, chainID uint64) (HeaderReader, error) {
	client, err := c.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Ping checks that a chain's node answers. It is used as a health check.
func (c *Clients) Ping(ctx context.Context, chainID uint64) (bool, string) {
	client, err := c.Client(ctx, chainID)
	if err != nil {
		return false, err.Error()
	}
	if _, err := client.BlockNumber(ctx); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// Close closes every dialed client.
func (c *Clients) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, client := range c.clients {
		client.Close()
		delete(c.clients, id)
	}
	return nil
}
