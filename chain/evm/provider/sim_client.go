package provider

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
)

var _ evm.ChainClient = (*SimClient)(nil)

// SimClient is a wrapper struct around a simulated backend which implements evm.ChainClient but
// also exposes backend methods.
type SimClient struct {
	mu sync.Mutex

	// Embed the simulated.Client to provide the evm.ChainClient methods.
	simulated.Client
	// sim is the underlying simulated backend that this client wraps.
	sim *simulated.Backend
}

// NewSimClient creates a new SimClient instance from a simulated backend.
func NewSimClient(t *testing.T, sim *simulated.Backend) *SimClient {
	t.Helper()

	require.NotNil(t, sim, "simulated backend must not be nil")

	return &SimClient{
		sim:    sim,
		Client: sim.Client(),
	}
}

// Commit mines the pending transactions into a new block.
func (b *SimClient) Commit() common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sim.Commit()
}
