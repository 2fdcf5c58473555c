// Package domain defines the core types shared by the settlement resolver:
// trade records, transfer aggregates, price quotes, and the collaborator
// interfaces implemented by the storage and cache adapters.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction declares which leg of a trade settled on-chain.
type Direction string

const (
	// DirectionBuyOnchain means the tracked asset was disposed of on-chain
	// and payment was received there (the off-chain leg was the buy).
	DirectionBuyOnchain Direction = "buy_side_onchain"

	// DirectionSellOnchain means the tracked asset was acquired on-chain by
	// paying value out (the off-chain leg was the sell).
	DirectionSellOnchain Direction = "sell_side_onchain"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionBuyOnchain || d == DirectionSellOnchain
}

// TradeRecord is one trade awaiting (or holding) on-chain settlement values.
// Records are created by the ingestion layer with TxRef, Direction, and
// OnsiteValueUsd set; the reconciliation loop fills in the remaining fields
// in a single update once the transaction has been fully resolved.
type TradeRecord struct {
	ID               int64
	TxRef            string
	Direction        Direction
	OnsiteValueUsd   decimal.Decimal
	OnchainValueUsd  decimal.NullDecimal
	GasUsedUsd       decimal.NullDecimal
	RawProfitUsd     decimal.NullDecimal
	ProfitWithGasUsd decimal.NullDecimal
	CreatedAt        time.Time
	ResolvedAt       *time.Time
}

// Resolved reports whether all computed settlement fields have been written.
func (r TradeRecord) Resolved() bool {
	return r.OnchainValueUsd.Valid && r.GasUsedUsd.Valid &&
		r.RawProfitUsd.Valid && r.ProfitWithGasUsd.Valid
}

// SettlementUpdate carries every computed field written to a TradeRecord.
// All fields are written together; a record is never partially updated.
type SettlementUpdate struct {
	OnchainValueUsd  decimal.Decimal
	GasUsedUsd       decimal.Decimal
	RawProfitUsd     decimal.Decimal
	ProfitWithGasUsd decimal.Decimal
	ResolvedAt       time.Time
}
