package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// TradeRecordStore implements domain.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *pgxpool.Pool
}

// NewTradeRecordStore creates a store backed by the given connection pool.
func NewTradeRecordStore(pool *pgxpool.Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

const recordCols = `id, tx_ref, direction, onsite_value_usd, onchain_value_usd,
	gas_used_usd, raw_profit_usd, profit_with_gas_usd, created_at, resolved_at`

func scanRecord(row pgx.Row) (domain.TradeRecord, error) {
	var r domain.TradeRecord
	err := row.Scan(
		&r.ID, &r.TxRef, &r.Direction, &r.OnsiteValueUsd, &r.OnchainValueUsd,
		&r.GasUsedUsd, &r.RawProfitUsd, &r.ProfitWithGasUsd, &r.CreatedAt, &r.ResolvedAt,
	)
	return r, err
}

func scanRecordRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var records []domain.TradeRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Create inserts a new trade record and returns its ID.
func (s *TradeRecordStore) Create(ctx context.Context, rec domain.TradeRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO trade_records (tx_ref, direction, onsite_value_usd)
		VALUES ($1, $2, $3)
		RETURNING id`,
		rec.TxRef, rec.Direction, rec.OnsiteValueUsd,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create trade record: %w", err)
	}
	return id, nil
}

// GetByID fetches one record, returning domain.ErrNotFound when absent.
func (s *TradeRecordStore) GetByID(ctx context.Context, id int64) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM trade_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade record %d: %w", id, err)
	}
	return rec, nil
}

// ListUnresolved returns up to limit records with a transaction reference
// and no computed settlement, newest first.
func (s *TradeRecordStore) ListUnresolved(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordCols+`
		FROM trade_records
		WHERE tx_ref <> '' AND onchain_value_usd IS NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unresolved: %w", err)
	}
	defer rows.Close()

	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unresolved: %w", err)
	}
	return records, nil
}

// UpdateSettlement writes every computed field in one UPDATE. A record is
// never left partially resolved.
func (s *TradeRecordStore) UpdateSettlement(ctx context.Context, id int64, upd domain.SettlementUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE trade_records
		SET onchain_value_usd = $2,
		    gas_used_usd = $3,
		    raw_profit_usd = $4,
		    profit_with_gas_usd = $5,
		    resolved_at = $6
		WHERE id = $1`,
		id, upd.OnchainValueUsd, upd.GasUsedUsd, upd.RawProfitUsd,
		upd.ProfitWithGasUsd, upd.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update settlement %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListResolvedBefore returns resolved records older than the cutoff, oldest
// first, for archival.
func (s *TradeRecordStore) ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordCols+`
		FROM trade_records
		WHERE resolved_at IS NOT NULL AND resolved_at < $1
		ORDER BY resolved_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved before: %w", err)
	}
	defer rows.Close()

	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan resolved before: %w", err)
	}
	return records, nil
}

// DeleteResolvedBefore removes archived-eligible records and returns the
// number deleted.
func (s *TradeRecordStore) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM trade_records
		WHERE resolved_at IS NOT NULL AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete resolved before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the total number of trade records.
func (s *TradeRecordStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count trade records: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.TradeRecordStore = (*TradeRecordStore)(nil)
