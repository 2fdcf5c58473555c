package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// BlobPutter uploads one object to cold storage.
type BlobPutter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// MultipartPutter is implemented by blob sinks that support multipart
// uploads. The archiver prefers it for oversized objects, which backfill
// runs over a long retention backlog can produce.
type MultipartPutter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// defaultMultipartThreshold is the object size above which a multipart
// upload is used when the sink supports it.
const defaultMultipartThreshold = 8 << 20

// Archiver moves old resolved trade records out of the database into cold
// storage as JSONL objects, keeping the hot table bounded.
type Archiver struct {
	store              domain.TradeRecordStore
	blob               BlobPutter
	retention          time.Duration
	multipartThreshold int
	logger             *slog.Logger
}

// NewArchiver creates an Archiver with the given retention window.
func NewArchiver(store domain.TradeRecordStore, blob BlobPutter, retention time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:              store,
		blob:               blob,
		retention:          retention,
		multipartThreshold: defaultMultipartThreshold,
		logger:             logger.With(slog.String("component", "settlement_archiver")),
	}
}

// archivedRecord is the JSONL row format written to cold storage.
type archivedRecord struct {
	ID               int64      `json:"id"`
	TxRef            string     `json:"tx_ref"`
	Direction        string     `json:"direction"`
	OnsiteValueUsd   string     `json:"onsite_value_usd"`
	OnchainValueUsd  string     `json:"onchain_value_usd"`
	GasUsedUsd       string     `json:"gas_used_usd"`
	RawProfitUsd     string     `json:"raw_profit_usd"`
	ProfitWithGasUsd string     `json:"profit_with_gas_usd"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// Run executes one archive pass: resolved records older than the retention
// cutoff are uploaded as one JSONL object, then deleted. Deletion only
// happens after a successful upload.
func (a *Archiver) Run(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-a.retention)

	records, err := a.store.ListResolvedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiver: list resolved before %v: %w", cutoff, err)
	}
	if len(records) == 0 {
		a.logger.InfoContext(ctx, "nothing to archive", slog.Time("cutoff", cutoff))
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		row := archivedRecord{
			ID:             r.ID,
			TxRef:          r.TxRef,
			Direction:      string(r.Direction),
			OnsiteValueUsd: r.OnsiteValueUsd.String(),
			CreatedAt:      r.CreatedAt,
			ResolvedAt:     r.ResolvedAt,
		}
		if r.OnchainValueUsd.Valid {
			row.OnchainValueUsd = r.OnchainValueUsd.Decimal.String()
		}
		if r.GasUsedUsd.Valid {
			row.GasUsedUsd = r.GasUsedUsd.Decimal.String()
		}
		if r.RawProfitUsd.Valid {
			row.RawProfitUsd = r.RawProfitUsd.Decimal.String()
		}
		if r.ProfitWithGasUsd.Valid {
			row.ProfitWithGasUsd = r.ProfitWithGasUsd.Decimal.String()
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("archiver: encode record %d: %w", r.ID, err)
		}
	}

	key := fmt.Sprintf("settlements/%04d/%02d/settlements-%s.jsonl",
		now.Year(), now.Month(), now.Format("20060102T150405Z"))
	if mp, ok := a.blob.(MultipartPutter); ok && buf.Len() >= a.multipartThreshold {
		if err := mp.PutMultipart(ctx, key, &buf, 0); err != nil {
			return fmt.Errorf("archiver: multipart upload %s: %w", key, err)
		}
	} else if err := a.blob.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("archiver: upload %s: %w", key, err)
	}

	deleted, err := a.store.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiver: delete resolved before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.String("object", key),
		slog.Int("archived", len(records)),
		slog.Int64("deleted", deleted),
	)
	return nil
}

// RunLoop runs archive passes on a fixed interval until ctx is cancelled.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
