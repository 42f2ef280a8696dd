package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SwapExecutionParams is everything a wallet needs to submit the swap.
type SwapExecutionParams struct {
	To       common.Address `json:"to"`
	Data     hexutil.Bytes  `json:"data"`
	Value    *hexutil.Big   `json:"value"`
	GasLimit uint64         `json:"gasLimit"`
}

// NewExecution builds params, treating a nil value as zero.
func NewExecution(to common.Address, data []byte, value *big.Int, gasLimit uint64) SwapExecutionParams {
	if value == nil {
		value = new(big.Int)
	}
	return SwapExecutionParams{
		To:       to,
		Data:     data,
		Value:    (*hexutil.Big)(new(big.Int).Set(value)),
		GasLimit: gasLimit,
	}
}

// ValueInt returns the native value as a big.Int.
func (p SwapExecutionParams) ValueInt() *big.Int {
	if p.Value == nil {
		return new(big.Int)
	}
	return p.Value.ToInt()
}
