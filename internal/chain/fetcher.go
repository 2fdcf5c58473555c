package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// nativeDecimals is the decimal precision of the chain's native asset (wei).
const nativeDecimals = 18

// TxDetails is everything the settlement pipeline needs from one mined
// transaction: the recovered sender, attached native value, gas accounting,
// and the ordered receipt logs.
type TxDetails struct {
	TxRef    string
	From     common.Address
	ValueWei *big.Int
	GasUsed  uint64
	// EffectiveGasPriceWei is the per-gas price actually paid.
	EffectiveGasPriceWei *big.Int
	Logs                 []*types.Log
}

// NativeValue returns the attached native value as a fractional amount.
func (d *TxDetails) NativeValue() decimal.Decimal {
	return weiToNative(d.ValueWei)
}

// GasCostNative returns gasUsed x effectiveGasPrice as a fractional amount
// of the native asset.
func (d *TxDetails) GasCostNative() decimal.Decimal {
	if d.EffectiveGasPriceWei == nil {
		return decimal.Zero
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(d.GasUsed), d.EffectiveGasPriceWei)
	return weiToNative(cost)
}

func weiToNative(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -nativeDecimals)
}

// Fetcher resolves an endpoint and loads a transaction with its receipt.
type Fetcher struct {
	resolver    *Resolver
	chainID     *big.Int
	callTimeout time.Duration
}

// NewFetcher creates a Fetcher over the given endpoint resolver. chainID is
// needed to recover the transaction sender from its signature.
func NewFetcher(resolver *Resolver, chainID int64, callTimeout time.Duration) *Fetcher {
	if callTimeout <= 0 {
		callTimeout = 8 * time.Second
	}
	return &Fetcher{
		resolver:    resolver,
		chainID:     big.NewInt(chainID),
		callTimeout: callTimeout,
	}
}

// Fetch loads the transaction and receipt for txRef. It distinguishes a
// transaction the node has never seen (domain.ErrTxNotFound, permanent)
// from one that exists but is not mined yet (domain.ErrReceiptPending,
// transient). The endpoint connection is closed before returning.
func (f *Fetcher) Fetch(ctx context.Context, txRef string) (*TxDetails, error) {
	client, url, err := f.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	hash := common.HexToHash(txRef)

	tx, pending, err := client.TransactionByHash(callCtx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("chain: tx %s via %s: %w", txRef, url, domain.ErrTxNotFound)
		}
		return nil, fmt.Errorf("chain: fetch tx %s via %s: %w", txRef, url, err)
	}
	if pending {
		return nil, fmt.Errorf("chain: tx %s: %w", txRef, domain.ErrReceiptPending)
	}

	receipt, err := client.TransactionReceipt(callCtx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("chain: tx %s: %w", txRef, domain.ErrReceiptPending)
		}
		return nil, fmt.Errorf("chain: fetch receipt %s via %s: %w", txRef, url, err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("chain: recover sender of %s: %w", txRef, err)
	}

	return &TxDetails{
		TxRef:                txRef,
		From:                 from,
		ValueWei:             tx.Value(),
		GasUsed:              receipt.GasUsed,
		EffectiveGasPriceWei: receipt.EffectiveGasPrice,
		Logs:                 receipt.Logs,
	}, nil
}
