// Package asset provides a type-safe model for on-chain tokens.
// The core uses big.Int for exact on-chain representation.
// decimal.Decimal is used at boundaries (pricing math, display, config).
package asset

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID uniquely identifies an asset by chain and contract address.
// For native coins (xDAI, ETH), address is zero.
type AssetID struct {
	chainID uint64
	address common.Address // zero = native coin
}

// NewNativeAssetID creates an AssetID for a native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

// NewTokenAssetID creates an AssetID for an ERC20 token.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("token address cannot be zero - use NewNativeAssetID for native coins")
	}
	return AssetID{chainID: chainID, address: addr}
}

// ChainID returns the chain ID.
func (id AssetID) ChainID() uint64 {
	return id.chainID
}

// Address returns the token contract address (zero for native coins).
func (id AssetID) Address() common.Address {
	return id.address
}

// IsNative returns true if this is a native coin.
func (id AssetID) IsNative() bool {
	return id.address == (common.Address{})
}

// Less orders tokens the way AMM pools assign token0/token1.
func (id AssetID) Less(other AssetID) bool {
	return bytes.Compare(id.address.Bytes(), other.address.Bytes()) < 0
}

// String returns a human-readable representation.
func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Equals compares two AssetIDs for equality.
func (id AssetID) Equals(other AssetID) bool {
	return id == other
}
