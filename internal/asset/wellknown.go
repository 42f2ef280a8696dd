package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDBSC      = 56
	ChainIDPolygon  = 137
	ChainIDBase     = 8453
	ChainIDArbitrum = 42161
)

// SupportedChains lists the chains with known token and router metadata.
var SupportedChains = []uint64{ChainIDEthereum, ChainIDArbitrum, ChainIDPolygon, ChainIDBase, ChainIDBSC}

// Well-known token addresses on Ethereum Mainnet
var (
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrDAIEthereum  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWBTCEthereum = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// Well-known Assets (pre-created instances)
var (
	// Ethereum Mainnet
	ETH  = NewNative(ChainIDEthereum, "ETH", "Ethereum")
	USDC = NewToken(ChainIDEthereum, AddrUSDCEthereum, "USDC", "USD Coin", 6)
	USDT = NewToken(ChainIDEthereum, AddrUSDTEthereum, "USDT", "Tether USD", 6)
	DAI  = NewToken(ChainIDEthereum, AddrDAIEthereum, "DAI", "Dai Stablecoin", 18)
	WETH = NewToken(ChainIDEthereum, AddrWETHEthereum, "WETH", "Wrapped Ether", 18)
	WBTC = NewToken(ChainIDEthereum, AddrWBTCEthereum, "WBTC", "Wrapped Bitcoin", 8)
)

// DefaultRegistry returns a registry pre-populated with well-known assets
// for every supported chain.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Ethereum Mainnet
	r.Register(ETH)
	r.Register(USDC)
	r.Register(USDT)
	r.Register(DAI)
	r.Register(WETH)
	r.Register(WBTC)

	// Arbitrum One
	r.Register(NewNative(ChainIDArbitrum, "ETH", "Ether"))
	r.Register(NewToken(ChainIDArbitrum, common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), "USDC", "USD Coin", 6))
	r.Register(NewToken(ChainIDArbitrum, common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"), "USDT", "Tether USD", 6))
	r.Register(NewToken(ChainIDArbitrum, common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), "WETH", "Wrapped Ether", 18))
	r.Register(NewToken(ChainIDArbitrum, common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f"), "WBTC", "Wrapped Bitcoin", 8))

	// Polygon PoS
	r.Register(NewNative(ChainIDPolygon, "POL", "Polygon"))
	r.Register(NewToken(ChainIDPolygon, common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"), "USDC", "USD Coin", 6))
	r.Register(NewToken(ChainIDPolygon, common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F"), "USDT", "Tether USD", 6))
	r.Register(NewToken(ChainIDPolygon, common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"), "WETH", "Wrapped Ether", 18))
	r.Register(NewToken(ChainIDPolygon, common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"), "WPOL", "Wrapped Polygon", 18))

	// Base
	r.Register(NewNative(ChainIDBase, "ETH", "Ether"))
	r.Register(NewToken(ChainIDBase, common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), "USDC", "USD Coin", 6))
	r.Register(NewToken(ChainIDBase, common.HexToAddress("0x4200000000000000000000000000000000000006"), "WETH", "Wrapped Ether", 18))

	// BNB Smart Chain
	r.Register(NewNative(ChainIDBSC, "BNB", "BNB"))
	r.Register(NewToken(ChainIDBSC, common.HexToAddress("0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"), "USDC", "USD Coin", 18))
	r.Register(NewToken(ChainIDBSC, common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"), "USDT", "Tether USD", 18))
	r.Register(NewToken(ChainIDBSC, common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"), "WBNB", "Wrapped BNB", 18))

	return r
}
