// Package evm holds the contract plumbing shared by the on-chain liquidity
// sources: ABIs, a breaker-guarded caller, QuoterV2 and pool readers.
package evm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/circuitbreaker"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// CallerResolver maps a chain id to a read-only contract caller.
type CallerResolver interface {
	ContractCaller(chainID uint64) (ethereum.ContractCaller, error)
}

// ErrEmptyResult is returned when a call returns no data, which is what a
// call to an address without code looks like.
var ErrEmptyResult = errors.New("evm: empty call result")

// ErrUndecodable is the cause of a call whose result does not match the ABI.
var ErrUndecodable = errors.New("evm: undecodable call result")

// IsRevert reports whether err means the contract rejected the call, as
// opposed to the node being unreachable.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResult) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if strings.Contains(e.Error(), "execution reverted") {
			return true
		}
	}
	return false
}

// Caller executes eth_call against contracts, one breaker per chain.
// Reverts are answers, not outages, and never trip a breaker.
type Caller struct {
	resolver CallerResolver
	name     string
	logger   logger.LoggerInterface

	mu       sync.Mutex
	breakers map[uint64]*circuitbreaker.CircuitBreaker[[]byte]
}

// NewCaller creates a caller. name prefixes breaker names.
func NewCaller(resolver CallerResolver, name string, log logger.LoggerInterface) *Caller {
	return &Caller{
		resolver: resolver,
		name:     name,
		logger:   log,
		breakers: make(map[uint64]*circuitbreaker.CircuitBreaker[[]byte]),
	}
}

func (c *Caller) breaker(chainID uint64) *circuitbreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[chainID]; ok {
		return cb
	}
	cfg := circuitbreaker.DefaultConfig(fmt.Sprintf("%s-%d", c.name, chainID))
	cfg.IsSuccessful = IsRevert
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	cb := circuitbreaker.New[[]byte](cfg)
	c.breakers[chainID] = cb
	return cb
}

// Call packs method with args, calls to on chainID and unpacks the outputs.
func (c *Caller) Call(ctx context.Context, chainID uint64, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := c.CallRaw(ctx, chainID, to, data)
	if err != nil {
		return nil, err
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(fmt.Errorf("%w: %w", ErrUndecodable, err)),
			apperror.WithContext("decode "+method))
	}
	return out, nil
}

// CallRaw runs eth_call with prepared calldata.
func (c *Caller) CallRaw(ctx context.Context, chainID uint64, to common.Address, data []byte) ([]byte, error) {
	client, err := c.resolver.ContractCaller(chainID)
	if err != nil {
		return nil, err
	}

	raw, err := c.breaker(chainID).Execute(func() ([]byte, error) {
		out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err == nil && len(out) == 0 {
			return nil, ErrEmptyResult
		}
		return out, err
	})
	if err != nil {
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(to.Hex()))
	}
	return raw, nil
}
