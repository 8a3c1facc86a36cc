package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDGnosis   = 100
)

// Well-known token addresses on Gnosis Chain
var (
	AddrGNOGnosis   = common.HexToAddress("0x9C58BAcC331c9aa871AFD802DB6379a98e80CEdb")
	AddrSDAIGnosis  = common.HexToAddress("0xaf204776c7245bF4147c2612BF6e5972Ee483701")
	AddrWXDAIGnosis = common.HexToAddress("0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d")
)

// Well-known AssetIDs
var (
	IDGnosisXDAI  = NewNativeAssetID(ChainIDGnosis)
	IDGnosisGNO   = NewTokenAssetID(ChainIDGnosis, AddrGNOGnosis)
	IDGnosisSDAI  = NewTokenAssetID(ChainIDGnosis, AddrSDAIGnosis)
	IDGnosisWXDAI = NewTokenAssetID(ChainIDGnosis, AddrWXDAIGnosis)
)

// Well-known Assets
var (
	XDAI  = NewAssetWithName(IDGnosisXDAI, "xDAI", "xDai", 18)
	GNO   = NewAssetWithName(IDGnosisGNO, "GNO", "Gnosis", 18)
	SDAI  = NewAssetWithName(IDGnosisSDAI, "sDAI", "Savings xDAI", 18)
	WXDAI = NewAssetWithName(IDGnosisWXDAI, "WXDAI", "Wrapped xDAI", 18)
)

// DefaultRegistry returns a registry pre-populated with well-known Gnosis assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(XDAI)
	r.Register(GNO)
	r.Register(SDAI)
	r.Register(WXDAI)
	return r
}

// MustNewToken creates a new ERC20 token asset.
func MustNewToken(chainID uint64, address common.Address, symbol, name string, decimals uint8) *Asset {
	return NewAssetWithName(NewTokenAssetID(chainID, address), symbol, name, decimals)
}

// MustNewNative creates a new native coin asset.
func MustNewNative(chainID uint64, symbol, name string, decimals uint8) *Asset {
	return NewAssetWithName(NewNativeAssetID(chainID), symbol, name, decimals)
}
