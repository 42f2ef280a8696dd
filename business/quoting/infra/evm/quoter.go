package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteExactInputSingleParams is the QuoterV2 input tuple.
type QuoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int // uint24
	SqrtPriceLimitX96 *big.Int // uint160, 0 for no limit
}

// QuoterOutput is what quoteExactInputSingle returns.
type QuoterOutput struct {
	AmountOut               *big.Int
	SqrtPriceX96After       *big.Int
	InitializedTicksCrossed uint32
	GasEstimate             *big.Int
}

// Quoter simulates single-pool V3 swaps through QuoterV2.
type Quoter struct {
	caller *Caller
}

// NewQuoter creates a quoter on top of caller.
func NewQuoter(caller *Caller) *Quoter {
	return &Quoter{caller: caller}
}

// QuoteExactInputSingle quotes amountIn through the pool of fee.
func (q *Quoter) QuoteExactInputSingle(ctx context.Context, chainID uint64, quoter, tokenIn, tokenOut common.Address, amountIn *big.Int, fee uint32) (QuoterOutput, error) {
	out, err := q.caller.Call(ctx, chainID, quoter, QuoterV2, "quoteExactInputSingle", QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return QuoterOutput{}, err
	}
	if len(out) < 4 {
		return QuoterOutput{}, fmt.Errorf("unexpected output length: %d", len(out))
	}

	return QuoterOutput{
		AmountOut:               out[0].(*big.Int),
		SqrtPriceX96After:       out[1].(*big.Int),
		InitializedTicksCrossed: out[2].(uint32),
		GasEstimate:             out[3].(*big.Int),
	}, nil
}
