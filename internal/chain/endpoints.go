// Package chain provides blockchain-node access for the settlement resolver:
// endpoint health probing with ordered failover, transaction and receipt
// fetching, and ERC-20 Transfer log decoding.
package chain

import "strings"

// EndpointKind distinguishes the transports a candidate endpoint may use.
type EndpointKind string

const (
	EndpointHTTP EndpointKind = "http"
	EndpointIPC  EndpointKind = "ipc"
)

// EndpointCandidate is one blockchain-node endpoint the resolver may use.
type EndpointCandidate struct {
	URL  string
	Kind EndpointKind
}

// publicFallbacks is the fixed pool of public endpoints probed after the
// configured ones. Order matters: earlier entries are preferred.
var publicFallbacks = []EndpointCandidate{
	{URL: "https://rpc.ankr.com/eth", Kind: EndpointHTTP},
	{URL: "https://eth.llamarpc.com", Kind: EndpointHTTP},
	{URL: "https://1rpc.io/eth", Kind: EndpointHTTP},
	{URL: "https://cloudflare-eth.com", Kind: EndpointHTTP},
}

// classifyEndpoint infers the transport from the endpoint string. Anything
// without a URL scheme is treated as an IPC socket path, matching how
// go-ethereum's rpc.DialContext dispatches.
func classifyEndpoint(raw string) EndpointCandidate {
	kind := EndpointIPC
	if strings.Contains(raw, "://") {
		kind = EndpointHTTP
	}
	return EndpointCandidate{URL: raw, Kind: kind}
}

// CandidateOrder builds the fixed probe order: the primary configured
// endpoint, the secondary if present, then the public fallback pool.
func CandidateOrder(primary, secondary string) []EndpointCandidate {
	var out []EndpointCandidate
	if primary != "" {
		out = append(out, classifyEndpoint(primary))
	}
	if secondary != "" {
		out = append(out, classifyEndpoint(secondary))
	}
	out = append(out, publicFallbacks...)
	return out
}
