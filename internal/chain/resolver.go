package chain

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/piyawong/ranking-relay-sub001/internal/domain"
)

// Resolver owns the ordered candidate list and hands back a live client,
// preferring the endpoint that worked last time. Endpoints degrade
// independently (rate limits, outages); remembering the last good index
// amortizes probing cost under steady state while still self-healing.
//
// A Resolver is driven by a single goroutine (the reconciliation loop), so
// the last-good index needs no locking. Run one Resolver per loop instance.
type Resolver struct {
	candidates []EndpointCandidate
	prober     Prober
	lastGood   int // index into candidates, -1 when unknown
	logger     *slog.Logger
}

// NewResolver builds a Resolver over the fixed candidate order for the given
// configured endpoints.
func NewResolver(primary, secondary string, prober Prober, logger *slog.Logger) *Resolver {
	return &Resolver{
		candidates: CandidateOrder(primary, secondary),
		prober:     prober,
		lastGood:   -1,
		logger:     logger.With(slog.String("component", "endpoint_resolver")),
	}
}

// Candidates returns the probe order. The slice must not be mutated.
func (r *Resolver) Candidates() []EndpointCandidate {
	return r.candidates
}

// Resolve returns a live client and the endpoint URL it is connected to.
// The caller owns the client and must Close it when done.
//
// Fast path: if a previous call found a working endpoint, that one is probed
// first and returned on success. Otherwise the remembered index is cleared
// and every other candidate is probed in order; the first to pass the health
// check wins. Each candidate is probed at most once per call. ErrNoEndpoint
// is returned when all candidates fail.
func (r *Resolver) Resolve(ctx context.Context) (*ethclient.Client, string, error) {
	failed := -1
	if r.lastGood >= 0 && r.lastGood < len(r.candidates) {
		cand := r.candidates[r.lastGood]
		client, err := r.prober.Probe(ctx, cand)
		if err == nil {
			return client, cand.URL, nil
		}
		r.logger.WarnContext(ctx, "last known good endpoint failed probe",
			slog.String("url", cand.URL),
			slog.String("error", err.Error()),
		)
		failed = r.lastGood
		r.lastGood = -1
	}

	for i, cand := range r.candidates {
		if i == failed {
			continue
		}
		client, err := r.prober.Probe(ctx, cand)
		if err != nil {
			r.logger.DebugContext(ctx, "endpoint probe failed",
				slog.String("url", cand.URL),
				slog.String("kind", string(cand.Kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.lastGood = i
		r.logger.InfoContext(ctx, "endpoint selected",
			slog.String("url", cand.URL),
			slog.Int("index", i),
		)
		return client, cand.URL, nil
	}

	return nil, "", domain.ErrNoEndpoint
}
