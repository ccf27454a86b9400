// Package provider connects the distributor to an EVM chain: over JSON-RPC for real networks, or
// on a simulated backend in tests.
package provider

import (
	"context"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
)

// ChainProvider initializes the chain the distributor runs on.
type ChainProvider interface {
	// Initialize dials the chain and derives the wallet. Calling it again returns the same chain.
	Initialize(ctx context.Context) (evm.Chain, error)
	Name() string
	// Chain returns the initialized chain. It must not be called before Initialize.
	Chain() evm.Chain
}

var (
	_ ChainProvider = (*RPCChainProvider)(nil)
	_ ChainProvider = (*SimChainProvider)(nil)
)
