package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecordStore persists trade records. Implementations must make
// UpdateSettlement atomic at the single-record granularity.
type TradeRecordStore interface {
	Create(ctx context.Context, rec TradeRecord) (int64, error)
	GetByID(ctx context.Context, id int64) (TradeRecord, error)

	// ListUnresolved returns up to limit records that have a transaction
	// reference but no computed settlement fields, newest first.
	ListUnresolved(ctx context.Context, limit int) ([]TradeRecord, error)

	// UpdateSettlement writes all computed fields to one record in a
	// single update. Returns ErrNotFound if the record does not exist.
	UpdateSettlement(ctx context.Context, id int64, upd SettlementUpdate) error

	// ListResolvedBefore returns resolved records whose resolution time is
	// strictly before the cutoff, oldest first (for archival).
	ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]TradeRecord, error)

	// DeleteResolvedBefore removes resolved records older than the cutoff
	// and returns the number deleted.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Count(ctx context.Context) (int64, error)
}

// PriceMirror publishes the latest native-asset price quote to a shared
// cache so dashboard-side readers can display it. Writes are best effort;
// the resolver's in-process quote remains authoritative.
type PriceMirror interface {
	SetNativePrice(ctx context.Context, price decimal.Decimal, ts time.Time) error
	GetNativePrice(ctx context.Context) (decimal.Decimal, time.Time, error)
}
