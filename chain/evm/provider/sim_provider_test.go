package provider

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
)

func Test_SimChainProvider_Initialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		giveConfig     SimChainProviderConfig
		wantBalance    *big.Int
		wantMinedBlock bool
	}{
		{
			name:        "valid initialization",
			giveConfig:  SimChainProviderConfig{},
			wantBalance: prefundAmountWei,
		},
		{
			name: "custom deployer balance",
			giveConfig: SimChainProviderConfig{
				DeployerBalance: big.NewInt(params.Ether / 100),
			},
			wantBalance: big.NewInt(params.Ether / 100),
		},
		{
			name: "valid initialization with automated block mining",
			giveConfig: SimChainProviderConfig{
				BlockTime: 10 * time.Millisecond,
			},
			wantBalance:    prefundAmountWei,
			wantMinedBlock: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewSimChainProvider(t, tt.giveConfig)

			got, err := p.Initialize(t.Context())
			require.NoError(t, err)
			assert.NotNil(t, p.chain)
			assert.Equal(t, got.From(), p.Chain().From())

			assert.Equal(t, 0, got.ChainID.Cmp(simChainID))
			assert.NotNil(t, got.Client)
			assert.NotNil(t, got.DeployerKey)
			assert.NotNil(t, got.Confirm)

			balance, err := got.Client.BalanceAt(t.Context(), got.From(), nil)
			require.NoError(t, err)
			assert.Equal(t, 0, balance.Cmp(tt.wantBalance))

			if tt.wantMinedBlock {
				c, ok := got.Client.(*SimClient)
				require.True(t, ok, "expected got.Client to be of type SimClient")

				assert.Eventually(t, func() bool {
					blockNum, err := c.BlockNumber(t.Context())
					if err != nil {
						return false
					}

					return blockNum > 1 // We commit the genesis block, so we expect at least 2 blocks
				}, 1*time.Second, 10*time.Millisecond)
			}
		})
	}
}

func Test_SimChainProvider_Confirm(t *testing.T) {
	t.Parallel()

	chain, err := NewSimChainProvider(t, SimChainProviderConfig{}).Initialize(t.Context())
	require.NoError(t, err)

	nonce, err := chain.Client.PendingNonceAt(t.Context(), chain.From())
	require.NoError(t, err)
	gasPrice, err := chain.Client.SuggestGasPrice(t.Context())
	require.NoError(t, err)

	tx, err := chain.DeployerKey.Signer(chain.From(),
		types.NewTransaction(nonce, testAddr1, big.NewInt(1), 21000, gasPrice, nil))
	require.NoError(t, err)
	require.NoError(t, chain.Client.SendTransaction(t.Context(), tx))

	receipt, err := chain.Confirm(t.Context(), tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	_, err = chain.Confirm(t.Context(), nil)
	require.ErrorContains(t, err, "tx was nil")
}

func Test_SimChainProvider_Name(t *testing.T) {
	t.Parallel()

	p := &SimChainProvider{}
	assert.Equal(t, "Simulated EVM Chain Provider", p.Name())
}

func Test_SimChainProvider_Chain(t *testing.T) {
	t.Parallel()

	chain := &evm.Chain{ChainID: big.NewInt(1337)}

	p := &SimChainProvider{
		chain: chain,
	}

	assert.Equal(t, *chain, p.Chain())
}
