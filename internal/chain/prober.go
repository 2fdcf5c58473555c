package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Prober tests whether a candidate endpoint is reachable and returns a live
// client when it is. A failed probe must not leak the connection.
type Prober interface {
	Probe(ctx context.Context, cand EndpointCandidate) (*ethclient.Client, error)
}

// DialProber dials a candidate and performs one cheap read (current chain
// height) within a bounded timeout. It does not retry; retries are the
// resolver's job.
type DialProber struct {
	Timeout time.Duration
}

// NewDialProber creates a DialProber with the given per-probe timeout.
func NewDialProber(timeout time.Duration) *DialProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DialProber{Timeout: timeout}
}

// Probe dials the endpoint and asks for the current block number. On any
// failure, including timeout, the connection is closed and an error returned.
func (p *DialProber) Probe(ctx context.Context, cand EndpointCandidate) (*ethclient.Client, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	rc, err := rpc.DialContext(probeCtx, cand.URL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cand.URL, err)
	}

	client := ethclient.NewClient(rc)
	if _, err := client.BlockNumber(probeCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: probe %s: %w", cand.URL, err)
	}
	return client, nil
}
