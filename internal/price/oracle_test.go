package price

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyawong/ranking-relay-sub001/internal/chain"
)

// rpcServer answers the minimal JSON-RPC surface the oracle path touches:
// eth_blockNumber for the endpoint probe and eth_call with a fixed return
// blob for latestRoundData.
func rpcServer(t *testing.T, callResult string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result string
		switch req.Method {
		case "eth_blockNumber":
			result = "0x10"
		case "eth_call":
			result = callResult
		default:
			t.Errorf("unexpected rpc method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, req.ID, result)
	}))
}

// roundDataReturn builds the five-word latestRoundData return blob with the
// given int256 answer in the second word.
func roundDataReturn(answer *big.Int) string {
	ret := make([]byte, 160)
	answer.FillBytes(ret[32:64])
	return "0x" + hex.EncodeToString(ret)
}

func newTestOracle(t *testing.T, srv *httptest.Server) *ChainlinkOracle {
	t.Helper()
	prober := chain.NewDialProber(time.Second)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := chain.NewResolver(srv.URL, "", prober, logger)
	return NewChainlinkOracle(resolver, "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419", time.Second)
}

func TestChainlinkOracleScalesAnswer(t *testing.T) {
	// 250039780174 at 8 decimals is 2500.39780174 USD.
	srv := rpcServer(t, roundDataReturn(big.NewInt(250039780174)))
	defer srv.Close()

	p, err := newTestOracle(t, srv).LatestPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("2500.39780174")), "price %s", p)
}

func TestChainlinkOracleRejectsNegativeAnswer(t *testing.T) {
	ret := make([]byte, 160)
	ret[32] = 0x80 // int256 sign bit set
	srv := rpcServer(t, "0x"+hex.EncodeToString(ret))
	defer srv.Close()

	_, err := newTestOracle(t, srv).LatestPrice(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestChainlinkOracleRejectsZeroAnswer(t *testing.T) {
	srv := rpcServer(t, roundDataReturn(big.NewInt(0)))
	defer srv.Close()

	_, err := newTestOracle(t, srv).LatestPrice(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero")
}

func TestChainlinkOracleRejectsShortReturn(t *testing.T) {
	srv := rpcServer(t, "0x0102")
	defer srv.Close()

	_, err := newTestOracle(t, srv).LatestPrice(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 bytes")
}
