// Package domain contains the core domain types for the quoting context.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"slices"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

// QuoteRequest is a normalized swap intent. It is passed by value and never
// mutated once a round starts.
type QuoteRequest struct {
	TokenIn   *asset.Asset
	TokenOut  *asset.Asset
	AmountIn  *big.Int        // smallest unit of TokenIn
	Slippage  decimal.Decimal // fraction in [0,1]
	Recipient *common.Address
	Deadline  *time.Time
}

// ChainID returns the chain of the input token.
func (r QuoteRequest) ChainID() uint64 {
	if r.TokenIn == nil {
		return 0
	}
	return r.TokenIn.ChainID()
}

// Validate checks the request against the chains a source supports.
func (r QuoteRequest) Validate(supportedChains []uint64) error {
	if r.TokenIn == nil || r.TokenOut == nil {
		return apperror.Validation(apperror.CodeRequiredField, "tokenIn and tokenOut are required")
	}
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return apperror.Validation(apperror.CodeInvalidAmount, "amountIn must be greater than zero")
	}
	if r.Slippage.IsNegative() || r.Slippage.GreaterThan(decimal.NewFromInt(1)) {
		return apperror.Validation(apperror.CodeInvalidSlippage, "slippage "+r.Slippage.String()+" outside [0,1]")
	}
	if !slices.Contains(supportedChains, r.TokenIn.ChainID()) {
		return apperror.Validation(apperror.CodeUnsupportedChain, "chain "+strconv.FormatUint(r.TokenIn.ChainID(), 10))
	}
	if r.TokenIn.ChainID() != r.TokenOut.ChainID() {
		return apperror.Validation(apperror.CodeCrossChainNotSupported, "tokens live on different chains")
	}
	if r.TokenIn.Address() == r.TokenOut.Address() {
		return apperror.Validation(apperror.CodeIdenticalTokens, r.TokenIn.Address().Hex())
	}
	return nil
}

// Key is a content hash of the request. Two requests with the same key
// quote the same thing.
func (r QuoteRequest) Key() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	if r.TokenIn != nil {
		write(r.TokenIn.ID().String())
	}
	if r.TokenOut != nil {
		write(r.TokenOut.ID().String())
	}
	if r.AmountIn != nil {
		write(r.AmountIn.String())
	}
	write(r.Slippage.String())
	if r.Recipient != nil {
		write(r.Recipient.Hex())
	}
	if r.Deadline != nil {
		write(strconv.FormatInt(r.Deadline.Unix(), 10))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// DeadlineOr returns the explicit deadline or now+horizon.
func (r QuoteRequest) DeadlineOr(now time.Time, horizon time.Duration) *big.Int {
	if r.Deadline != nil {
		return big.NewInt(r.Deadline.Unix())
	}
	return big.NewInt(now.Add(horizon).Unix())
}

// RecipientOr returns the explicit recipient or fallback.
func (r QuoteRequest) RecipientOr(fallback common.Address) common.Address {
	if r.Recipient != nil {
		return *r.Recipient
	}
	return fallback
}
