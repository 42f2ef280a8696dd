// Package asset provides a type-safe model for on-chain assets.
// The core uses big.Int for exact on-chain representation.
// decimal.Decimal is only used at boundaries (UI, parsing, display).
package asset

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeSentinel is the pseudo-address aggregators use for the chain's native coin.
var NativeSentinel = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// IsNativeAddress reports whether addr denotes the native coin: either the
// zero address or the 0xEeee... sentinel.
func IsNativeAddress(addr common.Address) bool {
	return addr == (common.Address{}) || addr == NativeSentinel
}

// AssetID uniquely identifies an asset by chain and contract address.
// For native coins (ETH, POL, BNB), address is zero.
type AssetID struct {
	chainID uint64
	address common.Address // zero = native coin
}

// NewNativeAssetID creates an AssetID for a native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

// NewTokenAssetID creates an AssetID for an ERC20 token. Native addresses
// collapse to the native id so both spellings compare equal.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if IsNativeAddress(addr) {
		return NewNativeAssetID(chainID)
	}
	return AssetID{
		chainID: chainID,
		address: addr,
	}
}

// ParseAssetID parses "<chainID>/<address>" or "<chainID>/native".
func ParseAssetID(s string) (AssetID, error) {
	chain, rest, ok := strings.Cut(s, "/")
	if !ok {
		return AssetID{}, fmt.Errorf("asset: malformed id %q", s)
	}
	var chainID uint64
	if _, err := fmt.Sscanf(chain, "%d", &chainID); err != nil || chainID == 0 {
		return AssetID{}, fmt.Errorf("asset: malformed chain in id %q", s)
	}
	if strings.EqualFold(rest, "native") {
		return NewNativeAssetID(chainID), nil
	}
	if !common.IsHexAddress(rest) {
		return AssetID{}, fmt.Errorf("asset: malformed address in id %q", s)
	}
	return NewTokenAssetID(chainID, common.HexToAddress(rest)), nil
}

// ChainID returns the chain ID.
func (id AssetID) ChainID() uint64 {
	return id.chainID
}

// Address returns the token contract address (zero for native coins).
func (id AssetID) Address() common.Address {
	return id.address
}

// IsNative returns true if this is a native coin (not an ERC20 token).
func (id AssetID) IsNative() bool {
	return id.address == (common.Address{})
}

// String returns "<chainID>/<address>" or "<chainID>/native".
func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("%d/native", id.chainID)
	}
	return fmt.Sprintf("%d/%s", id.chainID, id.address.Hex())
}

// Equals compares two AssetIDs for equality.
func (id AssetID) Equals(other AssetID) bool {
	return id.chainID == other.chainID && id.address == other.address
}
