package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a resolved USD price for the chain's native asset.
type PriceQuote struct {
	PriceUsd   decimal.Decimal
	ResolvedAt time.Time

	// Source names where the quote came from: "cache", "oracle", "api",
	// "stale_cache", or "fallback_constant".
	Source string

	// Degraded marks quotes produced by a fallback path (stale cache or
	// the last-resort constant) rather than a fresh authoritative source.
	Degraded bool
}

// Age returns how old the quote is at the given instant.
func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.ResolvedAt)
}
