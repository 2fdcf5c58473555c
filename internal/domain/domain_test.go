package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDirectionValid(t *testing.T) {
	assert.True(t, DirectionBuyOnchain.Valid())
	assert.True(t, DirectionSellOnchain.Valid())
	assert.False(t, Direction("").Valid())
	assert.False(t, Direction("sideways").Valid())
}

func TestTradeRecordResolved(t *testing.T) {
	var rec TradeRecord
	assert.False(t, rec.Resolved())

	rec.OnchainValueUsd = decimal.NewNullDecimal(decimal.New(1, 0))
	rec.GasUsedUsd = decimal.NewNullDecimal(decimal.Zero)
	rec.RawProfitUsd = decimal.NewNullDecimal(decimal.Zero)
	assert.False(t, rec.Resolved(), "all fields must be set together")

	rec.ProfitWithGasUsd = decimal.NewNullDecimal(decimal.Zero)
	assert.True(t, rec.Resolved())
}

func TestTransferAggregateSumsByKind(t *testing.T) {
	agg := TransferAggregate{
		"USDC": {
			Asset:    TrackedAsset{Symbol: "USDC", Kind: AssetStable},
			Received: decimal.RequireFromString("100"),
			Sent:     decimal.RequireFromString("10"),
		},
		"DAI": {
			Asset:    TrackedAsset{Symbol: "DAI", Kind: AssetStable},
			Received: decimal.RequireFromString("50"),
		},
		"WETH": {
			Asset: TrackedAsset{Symbol: "WETH", Kind: AssetWrappedNative},
			Sent:  decimal.RequireFromString("0.5"),
		},
	}

	assert.True(t, agg.ReceivedByKind(AssetStable).Equal(decimal.RequireFromString("150")))
	assert.True(t, agg.SentByKind(AssetStable).Equal(decimal.RequireFromString("10")))
	assert.True(t, agg.ReceivedByKind(AssetWrappedNative).IsZero())
	assert.True(t, agg.SentByKind(AssetWrappedNative).Equal(decimal.RequireFromString("0.5")))
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(ErrNoEndpoint))
	assert.True(t, Transient(ErrReceiptPending))
	assert.True(t, Transient(fmt.Errorf("chain: tx 0xabc: %w", ErrReceiptPending)))

	assert.False(t, Transient(ErrTxNotFound))
	assert.False(t, Transient(ErrValueTooSmall))
	assert.False(t, Transient(errors.New("rpc: boom")))
	assert.False(t, Transient(nil))
}

func TestPriceQuoteAge(t *testing.T) {
	at := time.Now()
	q := PriceQuote{ResolvedAt: at.Add(-30 * time.Second)}
	assert.Equal(t, 30*time.Second, q.Age(at))
}
