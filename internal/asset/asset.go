package asset

import "github.com/ethereum/go-ethereum/common"

// MaxDecimals is the most fractional digits a token may declare.
const MaxDecimals = 36

// Asset is token metadata. Two assets are the same token when their IDs
// match; symbols are for display and may collide.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewToken describes an ERC-20 contract on chainID.
func NewToken(chainID uint64, address common.Address, symbol, name string, decimals uint8) *Asset {
	return newAsset(NewTokenAssetID(chainID, address), symbol, name, decimals)
}

// NewNative describes the gas coin of chainID, always 18 decimals on the
// supported EVM chains.
func NewNative(chainID uint64, symbol, name string) *Asset {
	return newAsset(NewNativeAssetID(chainID), symbol, name, 18)
}

func newAsset(id AssetID, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > MaxDecimals {
		panic("asset: decimals out of range")
	}
	return &Asset{id: id, symbol: symbol, name: name, decimals: decimals}
}

func (a *Asset) ID() AssetID             { return a.id }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Decimals() uint8         { return a.decimals }
func (a *Asset) ChainID() uint64         { return a.id.ChainID() }
func (a *Asset) IsNative() bool          { return a.id.IsNative() }
func (a *Asset) Address() common.Address { return a.id.Address() }
func (a *Asset) String() string          { return a.symbol }

// Name falls back to the symbol when the token has none.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Equals compares by ID. Two nils are equal.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}
