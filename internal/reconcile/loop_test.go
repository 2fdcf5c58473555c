package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyawong/ranking-relay-sub001/internal/chain"
	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

var (
	sender       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	counterparty = common.HexToAddress("0x2222222222222222222222222222222222222222")

	usdcAsset = domain.TrackedAsset{
		Symbol:   "USDC",
		Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Decimals: 6,
		Kind:     domain.AssetStable,
	}

	transferSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

func usdcLog(from, to common.Address, raw int64) *types.Log {
	return &types.Log{
		Address: common.HexToAddress(usdcAsset.Address),
		Topics: []common.Hash{
			transferSig,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.BigToHash(big.NewInt(raw)).Bytes(),
	}
}

// memStore keeps records in a map and records every settlement update.
type memStore struct {
	records   map[int64]domain.TradeRecord
	listErr   error
	updateErr error
	updates   map[int64]domain.SettlementUpdate
}

func newMemStore(recs ...domain.TradeRecord) *memStore {
	s := &memStore{
		records: make(map[int64]domain.TradeRecord),
		updates: make(map[int64]domain.SettlementUpdate),
	}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *memStore) Create(_ context.Context, rec domain.TradeRecord) (int64, error) {
	s.records[rec.ID] = rec
	return rec.ID, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (domain.TradeRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return domain.TradeRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *memStore) ListUnresolved(_ context.Context, limit int) ([]domain.TradeRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.TradeRecord
	for _, r := range s.records {
		if !r.Resolved() && r.TxRef != "" {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) UpdateSettlement(_ context.Context, id int64, upd domain.SettlementUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.OnchainValueUsd = decimal.NewNullDecimal(upd.OnchainValueUsd)
	rec.GasUsedUsd = decimal.NewNullDecimal(upd.GasUsedUsd)
	rec.RawProfitUsd = decimal.NewNullDecimal(upd.RawProfitUsd)
	rec.ProfitWithGasUsd = decimal.NewNullDecimal(upd.ProfitWithGasUsd)
	rec.ResolvedAt = &upd.ResolvedAt
	s.records[id] = rec
	s.updates[id] = upd
	return nil
}

func (s *memStore) ListResolvedBefore(context.Context, time.Time) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (s *memStore) DeleteResolvedBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *memStore) Count(context.Context) (int64, error) { return int64(len(s.records)), nil }

// memFetcher serves scripted details or errors per tx reference.
type memFetcher struct {
	details map[string]*chain.TxDetails
	errs    map[string]error
	fetched []string
}

func (f *memFetcher) Fetch(_ context.Context, txRef string) (*chain.TxDetails, error) {
	f.fetched = append(f.fetched, txRef)
	if err, ok := f.errs[txRef]; ok {
		return nil, err
	}
	d, ok := f.details[txRef]
	if !ok {
		return nil, domain.ErrTxNotFound
	}
	return d, nil
}

type fixedPrice struct {
	quote domain.PriceQuote
}

func (p fixedPrice) ResolveUsdPrice(context.Context) domain.PriceQuote { return p.quote }

type memNotifier struct {
	err      error
	messages []string
}

func (n *memNotifier) Notify(_ context.Context, _, _, message string) error {
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, message)
	return nil
}

func buyRecord(id int64, txRef, onsite string) domain.TradeRecord {
	return domain.TradeRecord{
		ID:             id,
		TxRef:          txRef,
		Direction:      domain.DirectionBuyOnchain,
		OnsiteValueUsd: decimal.RequireFromString(onsite),
		CreatedAt:      time.Now(),
	}
}

func newTestLoop(store *memStore, fetcher *memFetcher, notifier Notifier) *Loop {
	return NewLoop(
		store,
		fetcher,
		fixedPrice{quote: domain.PriceQuote{
			PriceUsd:   decimal.RequireFromString("2000"),
			ResolvedAt: time.Now(),
			Source:     "oracle",
		}},
		[]domain.TrackedAsset{usdcAsset},
		notifier,
		Config{
			BatchSize:          10,
			MinOnchainValueUsd: decimal.RequireFromString("0.01"),
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestTickResolvesRecord(t *testing.T) {
	const txRef = "0xaaa1"
	store := newMemStore(buyRecord(7, txRef, "140"))
	fetcher := &memFetcher{details: map[string]*chain.TxDetails{
		txRef: {
			TxRef:                txRef,
			From:                 sender,
			ValueWei:             big.NewInt(0),
			GasUsed:              21000,
			EffectiveGasPriceWei: big.NewInt(0),
			Logs: []*types.Log{
				usdcLog(counterparty, sender, 150000000), // +150 USDC
			},
		},
	}}
	notifier := &memNotifier{}

	newTestLoop(store, fetcher, notifier).Tick(context.Background())

	upd, ok := store.updates[7]
	require.True(t, ok, "settlement was not persisted")
	assert.True(t, upd.OnchainValueUsd.Equal(decimal.RequireFromString("150")), "onchain %s", upd.OnchainValueUsd)
	assert.True(t, upd.RawProfitUsd.Equal(decimal.RequireFromString("10")), "raw profit %s", upd.RawProfitUsd)
	assert.True(t, store.records[7].Resolved())

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], txRef)
	assert.NotContains(t, notifier.messages[0], "degraded")
}

func TestTickDefersPendingReceipt(t *testing.T) {
	store := newMemStore(buyRecord(1, "0xpending", "100"))
	fetcher := &memFetcher{errs: map[string]error{
		"0xpending": domain.ErrReceiptPending,
	}}

	newTestLoop(store, fetcher, nil).Tick(context.Background())

	assert.Empty(t, store.updates)
	assert.False(t, store.records[1].Resolved())

	// The record is picked up again on the next tick.
	newTestLoop(store, fetcher, nil).Tick(context.Background())
	assert.Equal(t, []string{"0xpending"}, fetcher.fetched[1:])
}

func TestTickLeavesUnknownTxUnresolved(t *testing.T) {
	store := newMemStore(buyRecord(1, "0xmissing", "100"))
	fetcher := &memFetcher{}

	newTestLoop(store, fetcher, nil).Tick(context.Background())

	assert.Empty(t, store.updates)
	assert.False(t, store.records[1].Resolved())
}

func TestTickRejectsNearZeroSettlement(t *testing.T) {
	const txRef = "0xdust"
	store := newMemStore(buyRecord(1, txRef, "100"))
	fetcher := &memFetcher{details: map[string]*chain.TxDetails{
		txRef: {
			TxRef:    txRef,
			From:     sender,
			ValueWei: big.NewInt(0),
			Logs: []*types.Log{
				usdcLog(counterparty, sender, 700), // 0.0007 USDC
			},
		},
	}}

	newTestLoop(store, fetcher, nil).Tick(context.Background())

	// Below the minimum nothing is persisted: no large phantom loss.
	assert.Empty(t, store.updates)
	assert.False(t, store.records[1].Resolved())
}

func TestTickIsolatesFailingRecords(t *testing.T) {
	goodRef, badRef := "0xgood", "0xbad"
	store := newMemStore(
		buyRecord(1, badRef, "100"),
		buyRecord(2, goodRef, "90"),
	)
	fetcher := &memFetcher{
		details: map[string]*chain.TxDetails{
			goodRef: {
				TxRef:    goodRef,
				From:     sender,
				ValueWei: big.NewInt(0),
				Logs: []*types.Log{
					usdcLog(counterparty, sender, 100000000), // +100 USDC
				},
			},
		},
		errs: map[string]error{badRef: errors.New("rpc: boom")},
	}

	newTestLoop(store, fetcher, nil).Tick(context.Background())

	assert.True(t, store.records[2].Resolved(), "healthy record must settle despite the failing one")
	assert.False(t, store.records[1].Resolved())
	assert.Len(t, fetcher.fetched, 2)
}

func TestTickPersistFailureLeavesRecordUnresolved(t *testing.T) {
	const txRef = "0xaaa1"
	store := newMemStore(buyRecord(1, txRef, "100"))
	store.updateErr = errors.New("pq: connection reset")
	fetcher := &memFetcher{details: map[string]*chain.TxDetails{
		txRef: {
			TxRef:    txRef,
			From:     sender,
			ValueWei: big.NewInt(0),
			Logs:     []*types.Log{usdcLog(counterparty, sender, 100000000)},
		},
	}}
	notifier := &memNotifier{}

	newTestLoop(store, fetcher, notifier).Tick(context.Background())

	assert.False(t, store.records[1].Resolved())
	// Notify happens only after a successful persist.
	assert.Empty(t, notifier.messages)
}

func TestTickNotifyFailureDoesNotRollBack(t *testing.T) {
	const txRef = "0xaaa1"
	store := newMemStore(buyRecord(1, txRef, "100"))
	fetcher := &memFetcher{details: map[string]*chain.TxDetails{
		txRef: {
			TxRef:    txRef,
			From:     sender,
			ValueWei: big.NewInt(0),
			Logs:     []*types.Log{usdcLog(counterparty, sender, 100000000)},
		},
	}}
	notifier := &memNotifier{err: errors.New("telegram: 429")}

	newTestLoop(store, fetcher, notifier).Tick(context.Background())

	assert.True(t, store.records[1].Resolved())
}

func TestTickMentionsDegradedPrice(t *testing.T) {
	const txRef = "0xaaa1"
	store := newMemStore(buyRecord(1, txRef, "100"))
	fetcher := &memFetcher{details: map[string]*chain.TxDetails{
		txRef: {
			TxRef:    txRef,
			From:     sender,
			ValueWei: big.NewInt(0),
			Logs:     []*types.Log{usdcLog(counterparty, sender, 100000000)},
		},
	}}
	notifier := &memNotifier{}

	loop := NewLoop(
		store,
		fetcher,
		fixedPrice{quote: domain.PriceQuote{
			PriceUsd:   decimal.RequireFromString("2000"),
			ResolvedAt: time.Now().Add(-2 * time.Hour),
			Source:     "stale_cache",
			Degraded:   true,
		}},
		[]domain.TrackedAsset{usdcAsset},
		notifier,
		Config{BatchSize: 10, MinOnchainValueUsd: decimal.RequireFromString("0.01")},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	loop.Tick(context.Background())

	assert.True(t, store.records[1].Resolved())
	require.Len(t, notifier.messages, 1)
	assert.True(t, strings.Contains(notifier.messages[0], "degraded native price"))
	assert.Contains(t, notifier.messages[0], "stale_cache")
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newMemStore()
	loop := newTestLoop(store, &memFetcher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}
