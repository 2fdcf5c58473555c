package price

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/piyawong/ranking-relay-sub001/internal/chain"
)

// latestRoundDataSelector is the 4-byte selector of latestRoundData() on a
// Chainlink-style aggregator. The answer is the second 32-byte word of the
// return data.
var latestRoundDataSelector = common.FromHex("0xfeaf968c")

// oracleDecimals is the answer precision of Chainlink USD aggregators.
const oracleDecimals = 8

// ChainlinkOracle reads the native-asset USD price from an on-chain
// aggregator contract via eth_call.
type ChainlinkOracle struct {
	resolver   *chain.Resolver
	aggregator common.Address
	timeout    time.Duration
}

// NewChainlinkOracle creates an oracle source reading from the aggregator at
// the given hex address.
func NewChainlinkOracle(resolver *chain.Resolver, aggregator string, timeout time.Duration) *ChainlinkOracle {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ChainlinkOracle{
		resolver:   resolver,
		aggregator: common.HexToAddress(aggregator),
		timeout:    timeout,
	}
}

// LatestPrice performs one latestRoundData() call and scales the answer to a
// fractional USD amount.
func (o *ChainlinkOracle) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	client, url, err := o.resolver.Resolve(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	msg := ethereum.CallMsg{To: &o.aggregator, Data: latestRoundDataSelector}
	ret, err := client.CallContract(callCtx, msg, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price: oracle call via %s: %w", url, err)
	}
	if len(ret) < 64 {
		return decimal.Zero, fmt.Errorf("price: oracle returned %d bytes, want >= 64", len(ret))
	}

	// int256 answer; a set sign bit means a negative price, which no USD
	// aggregator legitimately reports.
	if ret[32]&0x80 != 0 {
		return decimal.Zero, fmt.Errorf("price: oracle returned negative answer")
	}
	answer := new(big.Int).SetBytes(ret[32:64])
	if answer.Sign() == 0 {
		return decimal.Zero, fmt.Errorf("price: oracle returned zero answer")
	}

	return decimal.NewFromBigInt(answer, -oracleDecimals), nil
}
