package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/chain"
	"github.com/piyawong/ranking-relay-sub001/internal/domain"
	"github.com/piyawong/ranking-relay-sub001/internal/price"
	"github.com/piyawong/ranking-relay-sub001/internal/reconcile"
)

// trackedAssets converts the configured token table, falling back to the
// built-in mainnet set when none is configured.
func (a *App) trackedAssets() []domain.TrackedAsset {
	if len(a.cfg.Chain.TrackedAssets) == 0 {
		return chain.DefaultTrackedAssets()
	}
	assets := make([]domain.TrackedAsset, 0, len(a.cfg.Chain.TrackedAssets))
	for _, ac := range a.cfg.Chain.TrackedAssets {
		assets = append(assets, domain.TrackedAsset{
			Symbol:   ac.Symbol,
			Address:  ac.Address,
			Decimals: int32(ac.Decimals),
			Kind:     domain.AssetKind(ac.Kind),
		})
	}
	return assets
}

// buildLoop assembles the reconciliation pipeline from configuration.
func (a *App) buildLoop(deps *Dependencies) *reconcile.Loop {
	prober := chain.NewDialProber(a.cfg.Chain.ProbeTimeout.Duration)
	resolver := chain.NewResolver(a.cfg.Chain.PrimaryRPC, a.cfg.Chain.SecondaryRPC, prober, a.logger)
	fetcher := chain.NewFetcher(resolver, a.cfg.Chain.ChainID, a.cfg.Chain.CallTimeout.Duration)

	oracle := price.NewChainlinkOracle(resolver, a.cfg.Price.OracleAddress, a.cfg.Chain.CallTimeout.Duration)
	api := price.NewHTTPSource(a.cfg.Price.ApiURL, a.cfg.Price.ApiTimeout.Duration)
	prices := price.NewResolver(oracle, api, deps.PriceMirror, price.Config{
		MaxAge:      a.cfg.Price.MaxAge.Duration,
		FallbackUsd: decimal.NewFromFloat(a.cfg.Price.FallbackUsd),
	}, a.logger)

	var notifier reconcile.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}

	return reconcile.NewLoop(deps.Records, fetcher, prices, a.trackedAssets(), notifier, reconcile.Config{
		TickInterval:       a.cfg.Reconcile.TickInterval.Duration,
		BatchSize:          a.cfg.Reconcile.BatchSize,
		MinOnchainValueUsd: decimal.NewFromFloat(a.cfg.Reconcile.MinOnchainValueUsd),
		ShutdownGrace:      a.cfg.Reconcile.ShutdownGrace.Duration,
	}, a.logger)
}

// buildArchiver assembles the settlement archiver.
func (a *App) buildArchiver(deps *Dependencies) *reconcile.Archiver {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	return reconcile.NewArchiver(deps.Records, deps.BlobWriter, retention, a.logger)
}

// ReconcileMode runs only the reconciliation loop.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting reconcile mode")
	return a.buildLoop(deps).Run(ctx)
}

// ArchiveMode performs a single archive pass and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	return a.buildArchiver(deps).Run(ctx)
}

// FullMode runs the reconciliation loop and, when enabled, the periodic
// archiver, as concurrent goroutines under one errgroup.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	loop := a.buildLoop(deps)
	g.Go(func() error {
		return loop.Run(ctx)
	})

	if a.cfg.Archive.Enabled {
		archiver := a.buildArchiver(deps)
		g.Go(func() error {
			err := archiver.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return err
		})
	}

	return g.Wait()
}
