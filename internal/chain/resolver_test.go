package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// fakeProber scripts probe outcomes per URL and records the probe order.
// A successful probe returns a nil client; the resolver only passes it
// through, so tests never need a real connection.
type fakeProber struct {
	fail   map[string]error
	probed []string
}

func (p *fakeProber) Probe(_ context.Context, cand EndpointCandidate) (*ethclient.Client, error) {
	p.probed = append(p.probed, cand.URL)
	if err, ok := p.fail[cand.URL]; ok {
		return nil, err
	}
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCandidateOrder(t *testing.T) {
	cands := CandidateOrder("http://localhost:8545", "/var/run/geth.ipc")

	require.Len(t, cands, 2+len(publicFallbacks))
	assert.Equal(t, EndpointCandidate{URL: "http://localhost:8545", Kind: EndpointHTTP}, cands[0])
	assert.Equal(t, EndpointCandidate{URL: "/var/run/geth.ipc", Kind: EndpointIPC}, cands[1])
	assert.Equal(t, publicFallbacks, cands[2:])
}

func TestCandidateOrderSkipsEmptyEndpoints(t *testing.T) {
	cands := CandidateOrder("", "")
	assert.Equal(t, publicFallbacks, cands)

	cands = CandidateOrder("http://localhost:8545", "")
	require.Len(t, cands, 1+len(publicFallbacks))
	assert.Equal(t, "http://localhost:8545", cands[0].URL)
}

func TestResolveFirstHealthyWins(t *testing.T) {
	prober := &fakeProber{fail: map[string]error{
		"http://a": errors.New("connection refused"),
	}}
	r := NewResolver("http://a", "http://b", prober, testLogger())

	_, url, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "http://b", url)
	assert.Equal(t, []string{"http://a", "http://b"}, prober.probed)
}

func TestResolveFastPathReusesLastGood(t *testing.T) {
	prober := &fakeProber{fail: map[string]error{
		"http://a": errors.New("rate limited"),
	}}
	r := NewResolver("http://a", "http://b", prober, testLogger())

	_, _, err := r.Resolve(context.Background())
	require.NoError(t, err)

	// The second call probes only the remembered endpoint.
	prober.probed = nil
	_, url, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://b", url)
	assert.Equal(t, []string{"http://b"}, prober.probed)
}

func TestResolveClearsLastGoodOnFailure(t *testing.T) {
	prober := &fakeProber{fail: map[string]error{}}
	r := NewResolver("http://a", "http://b", prober, testLogger())

	_, url, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "http://a", url)

	// The remembered endpoint starts failing; the full scan picks the next
	// without probing the just-failed candidate a second time.
	prober.fail["http://a"] = errors.New("gone away")
	prober.probed = nil

	_, url, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://b", url)
	assert.Equal(t, []string{"http://a", "http://b"}, prober.probed)
}

func TestResolveProbesEachCandidateAtMostOnce(t *testing.T) {
	prober := &fakeProber{fail: map[string]error{}}
	r := NewResolver("http://a", "http://b", prober, testLogger())

	_, _, err := r.Resolve(context.Background())
	require.NoError(t, err)

	// Everything goes down while a last-good index is remembered. One call
	// must not probe more than the full candidate list.
	down := errors.New("down")
	prober.fail["http://a"] = down
	prober.fail["http://b"] = down
	for _, pub := range publicFallbacks {
		prober.fail[pub.URL] = down
	}
	prober.probed = nil

	_, _, err = r.Resolve(context.Background())
	require.ErrorIs(t, err, domain.ErrNoEndpoint)
	assert.Len(t, prober.probed, len(r.Candidates()))
}

func TestResolveAllCandidatesFail(t *testing.T) {
	down := errors.New("down")
	prober := &fakeProber{fail: map[string]error{
		"http://a": down,
		"http://b": down,
	}}
	for _, pub := range publicFallbacks {
		prober.fail[pub.URL] = down
	}
	r := NewResolver("http://a", "http://b", prober, testLogger())

	_, _, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, domain.ErrNoEndpoint)
	assert.Len(t, prober.probed, 2+len(publicFallbacks))

	// The resolver stays usable: when an endpoint recovers, the next call
	// finds it.
	delete(prober.fail, "http://b")
	_, url, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://b", url)
}
