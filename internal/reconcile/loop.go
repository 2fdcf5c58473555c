// Package reconcile drives the settlement pipeline: it polls the store for
// unresolved trade records and, for each one, fetches the transaction,
// decodes transfers, resolves the native price, computes settlement values,
// persists them, and notifies.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/chain"
	"github.com/piyawong/ranking-relay-sub001/internal/domain"
	"github.com/piyawong/ranking-relay-sub001/internal/settle"
)

// TxFetcher loads a mined transaction with its receipt.
type TxFetcher interface {
	Fetch(ctx context.Context, txRef string) (*chain.TxDetails, error)
}

// PriceSource resolves the native-asset USD price.
type PriceSource interface {
	ResolveUsdPrice(ctx context.Context) domain.PriceQuote
}

// Notifier delivers a formatted text message. Fire and forget: a delivery
// failure never rolls back a persisted record.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the loop tunables.
type Config struct {
	TickInterval       time.Duration
	BatchSize          int
	MinOnchainValueUsd decimal.Decimal
	ShutdownGrace      time.Duration
}

// Loop is the reconciliation state machine. One Loop instance must be driven
// by one goroutine: ticks never overlap, which is what lets the endpoint
// resolver and price cache go unlocked.
type Loop struct {
	store    domain.TradeRecordStore
	fetcher  TxFetcher
	prices   PriceSource
	assets   []domain.TrackedAsset
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
}

// NewLoop builds a Loop. notifier may be nil when no channel is configured.
func NewLoop(
	store domain.TradeRecordStore,
	fetcher TxFetcher,
	prices PriceSource,
	assets []domain.TrackedAsset,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	return &Loop{
		store:    store,
		fetcher:  fetcher,
		prices:   prices,
		assets:   assets,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "reconcile_loop")),
	}
}

// Run ticks until ctx is cancelled. The first tick fires immediately. On
// cancellation no new tick is scheduled; an in-flight tick gets a bounded
// grace period to finish before Run returns regardless.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "reconcile loop starting",
		slog.Duration("tick_interval", l.cfg.TickInterval),
		slog.Int("batch_size", l.cfg.BatchSize),
	)

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	runTick := func() bool {
		done := make(chan struct{})
		go func() {
			defer close(done)
			l.Tick(ctx)
		}()
		select {
		case <-done:
			return true
		case <-ctx.Done():
			// Stop scheduling, but let the in-flight tick finish within
			// the grace period. Per-call timeouts bound each network op.
			grace := time.NewTimer(l.cfg.ShutdownGrace)
			defer grace.Stop()
			select {
			case <-done:
			case <-grace.C:
				l.logger.Warn("shutdown grace period elapsed with tick still in flight")
			}
			return false
		}
	}

	if !runTick() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("reconcile loop stopped")
			return nil
		case <-ticker.C:
			if !runTick() {
				return nil
			}
		}
	}
}

// Tick processes one batch of unresolved records sequentially. It is safe to
// call directly from tests; all per-record errors are contained here so one
// bad record never aborts the batch.
func (l *Loop) Tick(ctx context.Context) {
	runID := uuid.NewString()
	log := l.logger.With(slog.String("run_id", runID))

	records, err := l.store.ListUnresolved(ctx, l.cfg.BatchSize)
	if err != nil {
		log.ErrorContext(ctx, "selecting unresolved records failed", slog.String("error", err.Error()))
		return
	}
	if len(records) == 0 {
		return
	}

	log.InfoContext(ctx, "processing batch", slog.Int("records", len(records)))

	var resolved int
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if err := l.processRecord(ctx, rec); err != nil {
			switch {
			case domain.Transient(err):
				log.WarnContext(ctx, "record deferred to a later tick",
					slog.Int64("record_id", rec.ID),
					slog.String("tx_ref", rec.TxRef),
					slog.String("error", err.Error()),
				)
			case errors.Is(err, domain.ErrTxNotFound), errors.Is(err, domain.ErrValueTooSmall):
				log.ErrorContext(ctx, "record failed permanently, operator attention needed",
					slog.Int64("record_id", rec.ID),
					slog.String("tx_ref", rec.TxRef),
					slog.String("error", err.Error()),
				)
			default:
				log.ErrorContext(ctx, "record resolution failed",
					slog.Int64("record_id", rec.ID),
					slog.String("tx_ref", rec.TxRef),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		resolved++
	}

	log.InfoContext(ctx, "batch complete",
		slog.Int("resolved", resolved),
		slog.Int("failed", len(records)-resolved),
	)
}

// processRecord runs one record through the full pipeline. Nothing is
// persisted unless every stage succeeded.
func (l *Loop) processRecord(ctx context.Context, rec domain.TradeRecord) error {
	details, err := l.fetcher.Fetch(ctx, rec.TxRef)
	if err != nil {
		return err
	}

	agg := chain.DecodeTransfers(details.Logs, details.From, l.assets)
	quote := l.prices.ResolveUsdPrice(ctx)

	settlement := settle.Compute(agg, details.NativeValue(), quote.PriceUsd, details.GasCostNative())
	result, err := settle.Profit(rec.Direction, rec.OnsiteValueUsd, settlement, l.cfg.MinOnchainValueUsd)
	if err != nil {
		return err
	}

	upd := domain.SettlementUpdate{
		OnchainValueUsd:  result.OnchainValueUsd,
		GasUsedUsd:       result.GasUsedUsd,
		RawProfitUsd:     result.RawProfitUsd,
		ProfitWithGasUsd: result.ProfitWithGasUsd,
		ResolvedAt:       time.Now().UTC(),
	}
	if err := l.store.UpdateSettlement(ctx, rec.ID, upd); err != nil {
		return fmt.Errorf("persisting settlement for record %d: %w", rec.ID, err)
	}

	l.logger.InfoContext(ctx, "record resolved",
		slog.Int64("record_id", rec.ID),
		slog.String("tx_ref", rec.TxRef),
		slog.String("onchain_value_usd", result.OnchainValueUsd.String()),
		slog.String("profit_with_gas_usd", result.ProfitWithGasUsd.String()),
		slog.String("price_source", quote.Source),
		slog.Bool("price_degraded", quote.Degraded),
	)

	l.notifyResolved(ctx, rec, result, quote)
	return nil
}

// notifyResolved emits the settlement message. Failures are logged only.
func (l *Loop) notifyResolved(ctx context.Context, rec domain.TradeRecord, res settle.Result, quote domain.PriceQuote) {
	if l.notifier == nil {
		return
	}

	title := fmt.Sprintf("Trade %d settled", rec.ID)
	message := fmt.Sprintf(
		"tx: %s\ndirection: %s\nonsite: $%s\nonchain: $%s\ngas: $%s\nprofit: $%s (incl. gas: $%s)",
		rec.TxRef, rec.Direction, rec.OnsiteValueUsd.StringFixed(2),
		res.OnchainValueUsd.StringFixed(2), res.GasUsedUsd.StringFixed(2),
		res.RawProfitUsd.StringFixed(2), res.ProfitWithGasUsd.StringFixed(2),
	)
	if quote.Degraded {
		message += fmt.Sprintf("\nwarning: degraded native price (%s)", quote.Source)
	}

	if err := l.notifier.Notify(ctx, "settlement_resolved", title, message); err != nil {
		l.logger.WarnContext(ctx, "settlement notification failed",
			slog.Int64("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}
