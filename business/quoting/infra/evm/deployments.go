package evm

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

// Deployment lists the router and quoter contracts on one chain. Factories
// are read from the routers at runtime.
type Deployment struct {
	QuoterV2        common.Address
	SwapRouter      common.Address
	V2Router        common.Address
	UniversalRouter common.Address
	WrappedNative   common.Address

	// Router02 marks a SwapRouter02 deployment at SwapRouter.
	Router02 bool
}

var deployments = map[uint64]Deployment{
	asset.ChainIDEthereum: {
		QuoterV2:        common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		SwapRouter:      common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"),
		V2Router:        common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		UniversalRouter: common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"),
		WrappedNative:   common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	},
	asset.ChainIDArbitrum: {
		QuoterV2:        common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		SwapRouter:      common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"),
		V2Router:        common.HexToAddress("0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24"),
		UniversalRouter: common.HexToAddress("0x5E325eDA8064b456f4781070C0738d849c824258"),
		WrappedNative:   common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
	},
	asset.ChainIDPolygon: {
		QuoterV2:        common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		SwapRouter:      common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"),
		V2Router:        common.HexToAddress("0xedf6066a2b290C185783862C7F4776A2C8077AD1"),
		UniversalRouter: common.HexToAddress("0xec7BE89e9d109e7e3Fec59c222CF297125FEFda2"),
		WrappedNative:   common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
	},
	asset.ChainIDBase: {
		QuoterV2:        common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a"),
		SwapRouter:      common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481"),
		V2Router:        common.HexToAddress("0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24"),
		UniversalRouter: common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"),
		WrappedNative:   common.HexToAddress("0x4200000000000000000000000000000000000006"),
		Router02:        true,
	},
	asset.ChainIDBSC: {
		QuoterV2:        common.HexToAddress("0x78D78E420Da98ad378D7799bE8f4AF69033EB077"),
		SwapRouter:      common.HexToAddress("0xB971eF87ede563556b2ED4b1C0b0019111Dd85d2"),
		V2Router:        common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		UniversalRouter: common.HexToAddress("0x4Dae2f939ACf50408e13d58534Ff8c2776d45265"),
		WrappedNative:   common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
		Router02:        true,
	},
}

// DeploymentFor returns the contracts of a chain.
func DeploymentFor(chainID uint64) (Deployment, error) {
	d, ok := deployments[chainID]
	if !ok {
		return Deployment{}, apperror.Validation(apperror.CodeUnsupportedChain,
			"no deployment for chain "+strconv.FormatUint(chainID, 10))
	}
	return d, nil
}

// DeployedChains returns the chains with a deployment table.
func DeployedChains() []uint64 {
	return []uint64{asset.ChainIDEthereum, asset.ChainIDArbitrum, asset.ChainIDPolygon, asset.ChainIDBase, asset.ChainIDBSC}
}

// PoolToken returns the address pools know a token by: the wrapped native
// for native coins, the token itself otherwise.
func PoolToken(a *asset.Asset, d Deployment) common.Address {
	if a.IsNative() {
		return d.WrappedNative
	}
	return a.Address()
}

// EncodeV3Path packs a single-hop V3 path: tokenIn(20) fee(3) tokenOut(20).
func EncodeV3Path(tokenIn common.Address, fee uint32, tokenOut common.Address) []byte {
	path := make([]byte, 0, 2*common.AddressLength+3)
	path = append(path, tokenIn.Bytes()...)
	path = append(path, byte(fee>>16), byte(fee>>8), byte(fee))
	return append(path, tokenOut.Bytes()...)
}
