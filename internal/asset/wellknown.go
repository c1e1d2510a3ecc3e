package asset

import "github.com/ethereum/go-ethereum/common"

const ChainIDEthereum = 1

// Ethereum mainnet token addresses.
var (
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrDAIEthereum  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

var (
	ETH  = MustNewNative(ChainIDEthereum, "ETH", "Ethereum", 18)
	WETH = MustNewToken(ChainIDEthereum, AddrWETHEthereum, "WETH", "Wrapped Ether", 18)
	USDC = MustNewToken(ChainIDEthereum, AddrUSDCEthereum, "USDC", "USD Coin", 6)
	USDT = MustNewToken(ChainIDEthereum, AddrUSDTEthereum, "USDT", "Tether USD", 6)
	DAI  = MustNewToken(ChainIDEthereum, AddrDAIEthereum, "DAI", "Dai Stablecoin", 18)
)

// WellKnown returns the mainnet tokens whose metadata never needs fetching.
// The slice is empty for other chains.
func WellKnown(chainID uint64) []*Asset {
	if chainID != ChainIDEthereum {
		return nil
	}
	return []*Asset{WETH, USDC, USDT, DAI}
}
