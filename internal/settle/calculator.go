// Package settle contains the pure settlement math: combining decoded
// transfers, native-asset movement, and gas cost into USD totals and profit.
// Nothing here touches the network or the store.
package settle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// Settlement is the USD-equivalent value moved on-chain in one transaction.
type Settlement struct {
	TotalUsdReceived decimal.Decimal
	TotalUsdSent     decimal.Decimal
	GasUsedUsd       decimal.Decimal
}

// Result holds every computed field for one resolved trade record.
type Result struct {
	OnchainValueUsd  decimal.Decimal
	GasUsedUsd       decimal.Decimal
	RawProfitUsd     decimal.Decimal
	ProfitWithGasUsd decimal.Decimal
}

// Compute combines decoded transfers with the native-asset movement, the
// resolved native price, and the gas spent. Stablecoin amounts count as USD
// 1:1; wrapped-native amounts and the native value attached to the
// transaction are converted at priceUsd. Native value attached to the
// transaction counts as sent.
func Compute(agg domain.TransferAggregate, nativeMoved, priceUsd, gasNative decimal.Decimal) Settlement {
	received := agg.ReceivedByKind(domain.AssetStable).
		Add(agg.ReceivedByKind(domain.AssetWrappedNative).Mul(priceUsd))

	sent := agg.SentByKind(domain.AssetStable).
		Add(agg.SentByKind(domain.AssetWrappedNative).Mul(priceUsd)).
		Add(nativeMoved.Mul(priceUsd))

	return Settlement{
		TotalUsdReceived: received,
		TotalUsdSent:     sent,
		GasUsedUsd:       gasNative.Mul(priceUsd),
	}
}

// Profit derives the on-chain value and profit numbers for a trade.
//
// Sell-side on-chain means the tracked asset was acquired by paying value
// out, so the on-chain value is the total sent and profit is what the
// off-chain leg brought in minus it. Buy-side on-chain is the mirror case.
//
// An on-chain value below minOnchainUsd is surfaced as
// domain.ErrValueTooSmall: it almost certainly means the decoder found no
// matching logs, and must not be recorded as a large loss.
func Profit(direction domain.Direction, onsiteUsd decimal.Decimal, s Settlement, minOnchainUsd decimal.Decimal) (Result, error) {
	var onchain, rawProfit decimal.Decimal
	switch direction {
	case domain.DirectionSellOnchain:
		onchain = s.TotalUsdSent
		rawProfit = onsiteUsd.Sub(onchain)
	case domain.DirectionBuyOnchain:
		onchain = s.TotalUsdReceived
		rawProfit = onchain.Sub(onsiteUsd)
	default:
		return Result{}, fmt.Errorf("settle: unknown direction %q", direction)
	}

	if onchain.LessThan(minOnchainUsd) {
		return Result{}, fmt.Errorf("settle: onchain value %s below minimum %s: %w",
			onchain, minOnchainUsd, domain.ErrValueTooSmall)
	}

	return Result{
		OnchainValueUsd:  onchain,
		GasUsedUsd:       s.GasUsedUsd,
		RawProfitUsd:     rawProfit,
		ProfitWithGasUsd: rawProfit.Sub(s.GasUsedUsd),
	}, nil
}
