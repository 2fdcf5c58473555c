// Package price resolves a USD price for the chain's native asset through a
// cascade of sources: fresh in-process cache, on-chain oracle, off-chain
// HTTP API, stale cache, and finally a configured constant.
package price

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// Source is one authoritative price source in the fallback chain.
type Source interface {
	LatestPrice(ctx context.Context) (decimal.Decimal, error)
}

// Resolver owns the process-wide price quote. Construct one per loop
// instance; the cache is explicit state, not a package-level variable, so
// tests can build fresh resolvers with no shared state.
type Resolver struct {
	oracle   Source
	api      Source
	mirror   domain.PriceMirror // optional, best effort
	maxAge   time.Duration
	fallback decimal.Decimal
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.Mutex
	quote *domain.PriceQuote
}

// Config holds the tunables for a price Resolver.
type Config struct {
	// MaxAge is the validity window: a cached quote younger than this is
	// returned without consulting any source.
	MaxAge time.Duration

	// FallbackUsd is the last-resort constant returned when every source
	// fails and no cached quote exists. Hitting it is a loud failure.
	FallbackUsd decimal.Decimal
}

// NewResolver builds a Resolver over an oracle and an API source. mirror may
// be nil when no shared cache is configured.
func NewResolver(oracle, api Source, mirror domain.PriceMirror, cfg Config, logger *slog.Logger) *Resolver {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &Resolver{
		oracle:   oracle,
		api:      api,
		mirror:   mirror,
		maxAge:   maxAge,
		fallback: cfg.FallbackUsd,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "price_resolver")),
	}
}

// ResolveUsdPrice returns a USD quote for the native asset. It always
// returns a quote; degraded paths (stale cache, constant) are flagged on the
// quote rather than surfaced as errors, so a price outage never stalls the
// settlement pipeline.
func (r *Resolver) ResolveUsdPrice(ctx context.Context) domain.PriceQuote {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	// 1. Fresh cache.
	if r.quote != nil && r.quote.Age(now) < r.maxAge {
		q := *r.quote
		q.Source = "cache"
		return q
	}

	// 2. On-chain oracle.
	if p, err := r.oracle.LatestPrice(ctx); err == nil {
		return r.store(ctx, p, now, "oracle")
	} else {
		r.logger.WarnContext(ctx, "oracle price failed", slog.String("error", err.Error()))
	}

	// 3. Off-chain API.
	if p, err := r.api.LatestPrice(ctx); err == nil {
		return r.store(ctx, p, now, "api")
	} else {
		r.logger.WarnContext(ctx, "api price failed", slog.String("error", err.Error()))
	}

	// 4. Stale cache, any age. A knowingly old number beats failing the
	// whole pipeline.
	if r.quote != nil {
		q := *r.quote
		q.Source = "stale_cache"
		q.Degraded = true
		r.logger.WarnContext(ctx, "returning stale cached price",
			slog.String("price_usd", q.PriceUsd.String()),
			slog.Duration("age", q.Age(now)),
		)
		return q
	}

	// 5. Last-resort constant. This silently shapes a financial number, so
	// it is logged as an error, not a warning.
	r.logger.ErrorContext(ctx, "all price sources failed and no cache exists, using fallback constant",
		slog.String("fallback_usd", r.fallback.String()),
	)
	return domain.PriceQuote{
		PriceUsd:   r.fallback,
		ResolvedAt: now,
		Source:     "fallback_constant",
		Degraded:   true,
	}
}

// store updates the cached quote, mirrors it best-effort, and returns it.
func (r *Resolver) store(ctx context.Context, p decimal.Decimal, now time.Time, source string) domain.PriceQuote {
	q := domain.PriceQuote{PriceUsd: p, ResolvedAt: now, Source: source}
	r.quote = &q

	if r.mirror != nil {
		if err := r.mirror.SetNativePrice(ctx, p, now); err != nil {
			r.logger.WarnContext(ctx, "price mirror write failed", slog.String("error", err.Error()))
		}
	}
	return q
}
