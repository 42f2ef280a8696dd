package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// PoolReader reads pool state used for price impact. Factory addresses are
// resolved once per router and cached.
type PoolReader struct {
	caller *Caller

	mu        sync.Mutex
	factories map[factoryKey]common.Address
}

type factoryKey struct {
	chainID uint64
	router  common.Address
}

// NewPoolReader creates a reader on top of caller.
func NewPoolReader(caller *Caller) *PoolReader {
	return &PoolReader{
		caller:    caller,
		factories: make(map[factoryKey]common.Address),
	}
}

func (p *PoolReader) factory(ctx context.Context, chainID uint64, router common.Address, contract abi.ABI) (common.Address, error) {
	key := factoryKey{chainID: chainID, router: router}
	p.mu.Lock()
	f, ok := p.factories[key]
	p.mu.Unlock()
	if ok {
		return f, nil
	}

	f, err := readAddress(ctx, p.caller, chainID, router, contract, "factory")
	if err != nil {
		return common.Address{}, err
	}

	p.mu.Lock()
	p.factories[key] = f
	p.mu.Unlock()
	return f, nil
}

// V2Reserves returns the reserves of the tokenIn/tokenOut pair oriented as
// (reserveIn, reserveOut). router is a V2 router exposing factory().
func (p *PoolReader) V2Reserves(ctx context.Context, chainID uint64, router, tokenIn, tokenOut common.Address) (*big.Int, *big.Int, error) {
	factory, err := p.factory(ctx, chainID, router, V2Router)
	if err != nil {
		return nil, nil, err
	}

	out, err := p.caller.Call(ctx, chainID, factory, V2Factory, "getPair", tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}
	pair := out[0].(common.Address)
	if pair == (common.Address{}) {
		return nil, nil, fmt.Errorf("no pair for %s/%s", tokenIn.Hex(), tokenOut.Hex())
	}

	token0, err := readAddress(ctx, p.caller, chainID, pair, V2Pair, "token0")
	if err != nil {
		return nil, nil, err
	}

	out, err = p.caller.Call(ctx, chainID, pair, V2Pair, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	r0, r1 := out[0].(*big.Int), out[1].(*big.Int)

	if token0 == tokenIn {
		return r0, r1, nil
	}
	return r1, r0, nil
}

// V3SqrtPrice returns slot0.sqrtPriceX96 of the tokenA/tokenB pool at fee.
// quoter is a QuoterV2 exposing factory().
func (p *PoolReader) V3SqrtPrice(ctx context.Context, chainID uint64, quoter, tokenA, tokenB common.Address, fee uint32) (*big.Int, error) {
	factory, err := p.factory(ctx, chainID, quoter, QuoterV2)
	if err != nil {
		return nil, err
	}

	out, err := p.caller.Call(ctx, chainID, factory, V3Factory, "getPool", tokenA, tokenB, big.NewInt(int64(fee)))
	if err != nil {
		return nil, err
	}
	pool := out[0].(common.Address)
	if pool == (common.Address{}) {
		return nil, fmt.Errorf("no pool for %s/%s at %d", tokenA.Hex(), tokenB.Hex(), fee)
	}

	data, err := V3Pool.Pack("slot0")
	if err != nil {
		return nil, err
	}
	raw, err := p.caller.CallRaw(ctx, chainID, pool, data)
	if err != nil {
		return nil, err
	}
	vals, err := V3Pool.Methods["slot0"].Outputs[:1].Unpack(raw)
	if err != nil {
		return nil, fmt.Errorf("decode slot0: %w", err)
	}
	return vals[0].(*big.Int), nil
}

func readAddress(ctx context.Context, c *Caller, chainID uint64, to common.Address, contract abi.ABI, method string) (common.Address, error) {
	out, err := c.Call(ctx, chainID, to, contract, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return addr, nil
}
