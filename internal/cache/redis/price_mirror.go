package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// nativePriceKey is where the latest native-asset quote is published.
const nativePriceKey = "settlement:native_price"

// PriceMirror implements domain.PriceMirror on a Redis hash with "price"
// and "ts" fields. Dashboard processes read it; the reconcile loop writes
// it best-effort whenever a fresh price resolves.
type PriceMirror struct {
	rdb *redis.Client
}

// NewPriceMirror creates a PriceMirror backed by the given Client.
func NewPriceMirror(c *Client) *PriceMirror {
	return &PriceMirror{rdb: c.Underlying()}
}

// SetNativePrice stores the quote and its resolution timestamp.
func (m *PriceMirror) SetNativePrice(ctx context.Context, price decimal.Decimal, ts time.Time) error {
	fields := map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := m.rdb.HSet(ctx, nativePriceKey, fields).Err(); err != nil {
		return fmt.Errorf("redis: set native price: %w", err)
	}
	return nil
}

// GetNativePrice returns the mirrored quote, or domain.ErrNotFound when
// nothing has been published yet.
func (m *PriceMirror) GetNativePrice(ctx context.Context) (decimal.Decimal, time.Time, error) {
	vals, err := m.rdb.HGetAll(ctx, nativePriceKey).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get native price: %w", err)
	}
	if len(vals) == 0 {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}

	price, err := decimal.NewFromString(vals["price"])
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse mirrored price: %w", err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse mirrored ts: %w", err)
	}

	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceMirror = (*PriceMirror)(nil)
