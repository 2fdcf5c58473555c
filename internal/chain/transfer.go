package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// transferTopic is the event signature hash of Transfer(address,address,uint256).
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// DecodeTransfers walks the ordered receipt logs and aggregates ERC-20
// Transfer amounts of the tracked assets relative to account. Address
// comparison is case-insensitive because every hex string is parsed into a
// canonical common.Address before comparing.
//
// Pure function: no network or storage side effects. An asset with no
// matching logs appears in the result with zero amounts; Transfer logs of
// untracked contracts are silently ignored.
func DecodeTransfers(logs []*types.Log, account common.Address, assets []domain.TrackedAsset) domain.TransferAggregate {
	tracked := make(map[common.Address]domain.TrackedAsset, len(assets))
	agg := make(domain.TransferAggregate, len(assets))
	for _, a := range assets {
		tracked[common.HexToAddress(a.Address)] = a
		agg[a.Symbol] = domain.AssetMovement{
			Asset:    a,
			Received: decimal.Zero,
			Sent:     decimal.Zero,
		}
	}

	for _, lg := range logs {
		if lg == nil || len(lg.Topics) < 3 || lg.Topics[0] != transferTopic {
			continue
		}
		asset, ok := tracked[lg.Address]
		if !ok {
			continue
		}

		// Indexed address topics are left-padded to 32 bytes; the address
		// is the low-order 20.
		from := common.BytesToAddress(lg.Topics[1].Bytes()[12:])
		to := common.BytesToAddress(lg.Topics[2].Bytes()[12:])

		raw := new(big.Int).SetBytes(lg.Data)
		amount := decimal.NewFromBigInt(raw, -asset.Decimals)

		mov := agg[asset.Symbol]
		if to == account {
			mov.Received = mov.Received.Add(amount)
		}
		if from == account {
			mov.Sent = mov.Sent.Add(amount)
		}
		agg[asset.Symbol] = mov
	}

	return agg
}
