// Package evmtest provides an in-memory contract caller for adapter tests.
package evmtest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrReverted mimics a node's revert error.
var ErrReverted = errors.New("execution reverted")

// HandlerFunc answers one decoded call with output values or an error.
type HandlerFunc func(args []any) ([]any, error)

type route struct {
	to       common.Address
	selector [4]byte
}

type handler struct {
	method abi.Method
	fn     HandlerFunc
}

// Chain is a scripted set of contracts. Unscripted calls revert.
type Chain struct {
	mu       sync.Mutex
	handlers map[route]handler
	calls    map[string]int
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{
		handlers: make(map[route]handler),
		calls:    make(map[string]int),
	}
}

// Handle scripts method of contract at to.
func (c *Chain) Handle(to common.Address, contract abi.ABI, method string, fn HandlerFunc) {
	m, ok := contract.Methods[method]
	if !ok {
		panic("evmtest: unknown method " + method)
	}
	var sel [4]byte
	copy(sel[:], m.ID)

	c.mu.Lock()
	c.handlers[route{to: to, selector: sel}] = handler{method: m, fn: fn}
	c.mu.Unlock()
}

// Returns scripts a fixed answer.
func (c *Chain) Returns(to common.Address, contract abi.ABI, method string, outputs ...any) {
	c.Handle(to, contract, method, func([]any) ([]any, error) { return outputs, nil })
}

// Calls reports how often method was called on any contract.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// CallContract implements ethereum.ContractCaller.
func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, ErrReverted
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])

	c.mu.Lock()
	h, ok := c.handlers[route{to: *msg.To, selector: sel}]
	if ok {
		c.calls[h.method.Name]++
	}
	c.mu.Unlock()
	if !ok {
		return nil, ErrReverted
	}

	args, err := h.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("evmtest: decode %s: %w", h.method.Name, err)
	}
	outputs, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(outputs...)
}

// CodeAt implements ethereum.ContractCaller.
func (c *Chain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

// ContractCaller resolves every chain id to this chain.
func (c *Chain) ContractCaller(uint64) (ethereum.ContractCaller, error) {
	return c, nil
}
