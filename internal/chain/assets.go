package chain

import "github.com/piyawong/ranking-relay-sub001/internal/domain"

// DefaultTrackedAssets is the mainnet token set whose transfers are relevant
// to settlement: the major stablecoins plus wrapped ether.
func DefaultTrackedAssets() []domain.TrackedAsset {
	return []domain.TrackedAsset{
		{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6, Kind: domain.AssetStable},
		{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, Kind: domain.AssetStable},
		{Symbol: "DAI", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18, Kind: domain.AssetStable},
		{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, Kind: domain.AssetWrappedNative},
	}
}
