package provider

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
)

var (
	// simChainID is the chain ID for the simulated EVM chain. This is always set to 1337 across
	// all instances of EVM Simulated Chains.
	simChainID = params.AllDevChainProtocolChanges.ChainID
	// prefundAmountWei is the amount the deployer account is funded with, 1,000,000 ether.
	prefundAmountWei = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))
)

// SimChainProviderConfig holds the configuration to initialize the SimChainProvider.
type SimChainProviderConfig struct {
	// Optional: DeployerBalance overrides the genesis balance of the deployer account. Defaults
	// to 1,000,000 ether.
	DeployerBalance *big.Int
	// Optional: BlockTime configures the time between blocks being committed. By default, this is
	// set to 0s, meaning that blocks are mined by the Confirm function of the chain.
	BlockTime time.Duration
}

// SimChainProvider manages a simulated EVM chain that is backed by go-ethereum's in memory
// simulated backend. It is meant for tests.
type SimChainProvider struct {
	t      *testing.T
	config SimChainProviderConfig

	chain *evm.Chain
}

// NewSimChainProvider creates a new SimChainProvider with the given configuration.
func NewSimChainProvider(t *testing.T, config SimChainProviderConfig) *SimChainProvider {
	t.Helper()

	return &SimChainProvider{
		t:      t,
		config: config,
	}
}

// Initialize sets up the simulated chain with a prefunded deployer account. The Confirm function
// of the returned chain commits a block before polling for the receipt.
func (p *SimChainProvider) Initialize(_ context.Context) (evm.Chain, error) {
	if p.chain != nil {
		return *p.chain, nil // Already initialized
	}

	// Generate a deployer account
	key, err := crypto.GenerateKey()
	require.NoError(p.t, err, "failed to generate deployer key")

	adminTransactor, err := bind.NewKeyedTransactorWithChainID(key, simChainID)
	require.NoError(p.t, err)

	balance := prefundAmountWei
	if p.config.DeployerBalance != nil {
		balance = p.config.DeployerBalance
	}

	genesis := types.GenesisAlloc{
		adminTransactor.From: {Balance: balance},
	}

	// Initialize the simulated backend with the genesis state
	backend := simulated.NewBackend(genesis, simulated.WithBlockGasLimit(50000000))
	backend.Commit() // Commit the genesis block
	p.t.Cleanup(func() { _ = backend.Close() })

	// Start mining blocks if a block time is configured
	if p.config.BlockTime > 0 {
		startAutoMine(p.t, backend, p.config.BlockTime)
	}

	client := NewSimClient(p.t, backend)

	confirm, err := ConfirmFuncGeth(time.Minute, WithTickInterval(10*time.Millisecond)).
		Generate(client, adminTransactor.From)
	require.NoError(p.t, err)

	p.chain = &evm.Chain{
		ChainID:     new(big.Int).Set(simChainID),
		Client:      client,
		DeployerKey: adminTransactor,
		Confirm: func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
			// Ensure the transaction is mined by committing a new block
			if tx != nil {
				client.Commit()
			}

			return confirm(ctx, tx)
		},
	}

	return *p.chain, nil
}

// Name returns the name of the SimChainProvider.
func (*SimChainProvider) Name() string {
	return "Simulated EVM Chain Provider"
}

// Chain returns the simulated chain instance managed by this provider. You must call Initialize
// before using this method to ensure the chain is properly set up.
func (p *SimChainProvider) Chain() evm.Chain {
	return *p.chain
}

// startAutoMine triggers the simulated backend to create a new block at intervals defined by
// `blockTime`. After the test is done, it stops the mining goroutine.
func startAutoMine(t *testing.T, backend *simulated.Backend, blockTime time.Duration) {
	t.Helper()

	ctx := t.Context()
	ticker := time.NewTicker(blockTime)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				backend.Commit()
			case <-ctx.Done():
				return
			}
		}
	}()
}
