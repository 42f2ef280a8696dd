package evm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

// TokenReader reads ERC20 metadata for tokens the registry does not know.
type TokenReader struct {
	caller *Caller
}

// NewTokenReader creates a reader on top of caller.
func NewTokenReader(caller *Caller) *TokenReader {
	return &TokenReader{caller: caller}
}

// Metadata reads symbol, name and decimals. Tokens returning bytes32
// strings are handled.
func (r *TokenReader) Metadata(ctx context.Context, chainID uint64, token common.Address) (*asset.Asset, error) {
	if asset.IsNativeAddress(token) {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "native coin has no erc20 metadata")
	}

	out, err := r.caller.Call(ctx, chainID, token, ERC20, "decimals")
	if err != nil {
		return nil, err
	}
	decimals := out[0].(uint8)
	if decimals > asset.MaxDecimals {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("%s declares %d decimals", token.Hex(), decimals))
	}

	symbol, err := r.text(ctx, chainID, token, "symbol")
	if err != nil {
		return nil, err
	}
	if symbol == "" {
		symbol = token.Hex()[:10]
	}
	name, err := r.text(ctx, chainID, token, "name")
	if err != nil {
		name = symbol
	}

	return asset.NewToken(chainID, token, symbol, name, decimals), nil
}

func (r *TokenReader) text(ctx context.Context, chainID uint64, token common.Address, method string) (string, error) {
	out, err := r.caller.Call(ctx, chainID, token, ERC20, method)
	if err == nil {
		return strings.TrimSpace(out[0].(string)), nil
	}
	if !errors.Is(err, ErrUndecodable) {
		return "", err
	}

	// string decode failed; try the bytes32 flavour
	out, err = r.caller.Call(ctx, chainID, token, ERC20Bytes32, method)
	if err != nil {
		return "", err
	}
	raw := out[0].([32]byte)
	return string(bytes.TrimRight(raw[:], "\x00")), nil
}
