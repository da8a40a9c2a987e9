// Package chains holds the static table of supported chains and their
// connection parameters.
package chains

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Ashar20/Trader-daddy/pkg/errors"
)

// Chain describes one supported EVM chain.
type Chain struct {
	ID             int64
	Name           string
	RPCURL         string
	NativeCurrency string
	ExplorerURL    string
}

// ExplorerTxURL returns the block-explorer URL for a transaction hash,
// or "" when the chain has no explorer configured.
func (c Chain) ExplorerTxURL(hash string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimSuffix(c.ExplorerURL, "/"), hash)
}

// CAIP2 returns the CAIP-2 identifier for the chain, e.g. "eip155:11155420".
func (c Chain) CAIP2() string {
	return FormatCAIP2(c.ID)
}

// Canonical table of supported chains. Unknown chain IDs are an explicit
// error, never a fallback chain.
var supportedChains = map[int64]Chain{
	44787: {
		ID:             44787,
		Name:           "Celo Alfajores",
		RPCURL:         "https://alfajores-forno.celo-testnet.org",
		NativeCurrency: "CELO",
		ExplorerURL:    "https://alfajores.celoscan.io",
	},
	80001: {
		ID:             80001,
		Name:           "Polygon Amoy",
		RPCURL:         "https://rpc-amoy.polygon.technology",
		NativeCurrency: "MATIC",
		ExplorerURL:    "https://amoy.polygonscan.com",
	},
	31337: {
		ID:             31337,
		Name:           "Rootstock Testnet",
		RPCURL:         "https://public-node.testnet.rsk.co",
		NativeCurrency: "tRBTC",
		ExplorerURL:    "https://explorer.testnet.rootstock.io",
	},
	11155420: {
		ID:             11155420,
		Name:           "Optimism Sepolia",
		RPCURL:         "https://sepolia.optimism.io",
		NativeCurrency: "ETH",
		ExplorerURL:    "https://sepolia-optimism.etherscan.io",
	},
	421614: {
		ID:             421614,
		Name:           "Arbitrum Sepolia",
		RPCURL:         "https://sepolia-rollup.arbitrum.io/rpc",
		NativeCurrency: "ETH",
		ExplorerURL:    "https://sepolia.arbiscan.io",
	},
}

// Registry resolves chain IDs to chain metadata.
type Registry struct {
	chains map[int64]Chain
}

// NewRegistry creates a registry over the canonical chain table.
// RPC URLs can be overridden per chain ID; overrides for unknown chains are
// ignored rather than extending the supported set.
func NewRegistry(rpcOverrides map[int64]string) *Registry {
	chains := make(map[int64]Chain, len(supportedChains))
	for id, chain := range supportedChains {
		if url, ok := rpcOverrides[id]; ok && url != "" {
			chain.RPCURL = url
		}
		chains[id] = chain
	}
	return &Registry{chains: chains}
}

// Resolve returns the chain metadata for a chain ID, or an unsupported
// chain error enumerating the supported set.
func (r *Registry) Resolve(chainID int64) (Chain, error) {
	chain, ok := r.chains[chainID]
	if !ok {
		return Chain{}, apperrors.UnsupportedChain(fmt.Sprintf(
			"chain id %d; supported chains: %s", chainID, r.supportedList()))
	}
	return chain, nil
}

// Supported reports whether a chain ID is in the registry.
func (r *Registry) Supported(chainID int64) bool {
	_, ok := r.chains[chainID]
	return ok
}

// All returns the supported chains ordered by chain ID.
func (r *Registry) All() []Chain {
	chains := make([]Chain, 0, len(r.chains))
	for _, chain := range r.chains {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ID < chains[j].ID })
	return chains
}

func (r *Registry) supportedList() string {
	ids := make([]string, 0, len(r.chains))
	for _, chain := range r.All() {
		ids = append(ids, strconv.FormatInt(chain.ID, 10))
	}
	return strings.Join(ids, ", ")
}

// ParseCAIP2 parses a CAIP-2 chain identifier of the form "eip155:<id>".
func ParseCAIP2(identifier string) (int64, error) {
	namespace, idStr, ok := strings.Cut(identifier, ":")
	if !ok {
		return 0, fmt.Errorf("invalid chain identifier %q: missing namespace separator", identifier)
	}
	if namespace != "eip155" {
		return 0, fmt.Errorf("invalid chain identifier %q: unsupported namespace %q", identifier, namespace)
	}
	chainID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain identifier %q: %w", identifier, err)
	}
	return chainID, nil
}

// FormatCAIP2 formats a chain ID as a CAIP-2 identifier.
func FormatCAIP2(chainID int64) string {
	return fmt.Sprintf("eip155:%d", chainID)
}
