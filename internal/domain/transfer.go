package domain

import "github.com/shopspring/decimal"

// AssetKind classifies a tracked asset for settlement math.
type AssetKind string

const (
	// AssetStable is a stable-value token counted 1:1 as USD.
	AssetStable AssetKind = "stable"

	// AssetWrappedNative is the wrapped form of the chain's native asset;
	// its USD value depends on the resolved native price.
	AssetWrappedNative AssetKind = "wrapped_native"
)

// TrackedAsset is one token contract whose transfers matter for settlement.
// The set of tracked assets is fixed configuration for the process lifetime.
type TrackedAsset struct {
	Symbol   string
	Address  string // hex contract address, any case
	Decimals int32
	Kind     AssetKind
}

// AssetMovement holds the decoded in/out totals for one tracked asset,
// relative to the measured account.
type AssetMovement struct {
	Asset    TrackedAsset
	Received decimal.Decimal
	Sent     decimal.Decimal
}

// TransferAggregate maps asset symbols to their decoded movements for one
// transaction receipt. Assets with no matching logs are present with zero
// amounts so callers never need to distinguish "absent" from "zero".
type TransferAggregate map[string]AssetMovement

// ReceivedByKind sums received amounts across all assets of the given kind.
func (a TransferAggregate) ReceivedByKind(kind AssetKind) decimal.Decimal {
	total := decimal.Zero
	for _, m := range a {
		if m.Asset.Kind == kind {
			total = total.Add(m.Received)
		}
	}
	return total
}

// SentByKind sums sent amounts across all assets of the given kind.
func (a TransferAggregate) SentByKind(kind AssetKind) decimal.Decimal {
	total := decimal.Zero
	for _, m := range a {
		if m.Asset.Kind == kind {
			total = total.Add(m.Sent)
		}
	}
	return total
}
