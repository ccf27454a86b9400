package provider

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
)

func Test_RPCChainProviderConfig_validate(t *testing.T) {
	t.Parallel()

	rpc := evm.RPC{
		Name: "Test",
		URL:  "http://localhost:8545",
	}

	confirmFuncGeth := ConfirmFuncGeth(10 * time.Millisecond)

	tests := []struct {
		name    string
		config  RPCChainProviderConfig
		wantErr string
	}{
		{
			name: "valid config",
			config: RPCChainProviderConfig{
				DeployerTransactorGen: TransactorRandom(),
				ChainID:               testChainIDBig,
				RPCs:                  []evm.RPC{rpc},
				ConfirmFunctor:        confirmFuncGeth,
			},
		},
		{
			name: "missing deployer transactor generator",
			config: RPCChainProviderConfig{
				ChainID:        testChainIDBig,
				RPCs:           []evm.RPC{rpc},
				ConfirmFunctor: confirmFuncGeth,
			},
			wantErr: "deployer transactor generator is required",
		},
		{
			name: "missing confirm functor",
			config: RPCChainProviderConfig{
				DeployerTransactorGen: TransactorRandom(),
				ChainID:               testChainIDBig,
				RPCs:                  []evm.RPC{rpc},
			},
			wantErr: "confirm functor is required",
		},
		{
			name: "chain id is optional",
			config: RPCChainProviderConfig{
				DeployerTransactorGen: TransactorRandom(),
				RPCs:                  []evm.RPC{rpc},
				ConfirmFunctor:        confirmFuncGeth,
			},
		},
		{
			name: "negative chain id",
			config: RPCChainProviderConfig{
				DeployerTransactorGen: TransactorRandom(),
				ChainID:               big.NewInt(-1),
				RPCs:                  []evm.RPC{rpc},
				ConfirmFunctor:        confirmFuncGeth,
			},
			wantErr: "chain id must be positive",
		},
		{
			name: "missing rpcs",
			config: RPCChainProviderConfig{
				DeployerTransactorGen: TransactorRandom(),
				ChainID:               testChainIDBig,
				ConfirmFunctor:        confirmFuncGeth,
			},
			wantErr: "at least one RPC is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_RPCChainProvider_Initialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		giveConfig func(t *testing.T) RPCChainProviderConfig
		wantErr    string
	}{
		{
			name: "valid initialization",
			giveConfig: func(t *testing.T) RPCChainProviderConfig {
				t.Helper()

				return RPCChainProviderConfig{
					DeployerTransactorGen: TransactorRandom(),
					ChainID:               testChainIDBig,
					RPCs:                  []evm.RPC{{Name: "fake", URL: newFakeRPCServer(t, testChainIDBig).URL}},
					ConfirmFunctor:        ConfirmFuncGeth(time.Second),
					Logger:                logger.Test(t),
				}
			},
		},
		{
			name: "discovers chain id",
			giveConfig: func(t *testing.T) RPCChainProviderConfig {
				t.Helper()

				return RPCChainProviderConfig{
					DeployerTransactorGen: TransactorRandom(),
					RPCs:                  []evm.RPC{{Name: "fake", URL: newFakeRPCServer(t, testChainIDBig).URL}},
					ConfirmFunctor:        ConfirmFuncGeth(time.Second),
					Logger:                logger.Test(t),
				}
			},
		},
		{
			name: "fails config validation",
			giveConfig: func(t *testing.T) RPCChainProviderConfig {
				t.Helper()

				return RPCChainProviderConfig{Logger: logger.Test(t)}
			},
			wantErr: "failed to validate provider config",
		},
		{
			name: "fails to generate deployer key",
			giveConfig: func(t *testing.T) RPCChainProviderConfig {
				t.Helper()

				return RPCChainProviderConfig{
					DeployerTransactorGen: &alwaysFailingSignerGenerator{},
					ChainID:               testChainIDBig,
					RPCs:                  []evm.RPC{{Name: "fake", URL: newFakeRPCServer(t, testChainIDBig).URL}},
					ConfirmFunctor:        ConfirmFuncGeth(time.Second),
					Logger:                logger.Test(t),
				}
			},
			wantErr: "failed to generate deployer key",
		},
		{
			name: "endpoint serves another chain",
			giveConfig: func(t *testing.T) RPCChainProviderConfig {
				t.Helper()

				return RPCChainProviderConfig{
					DeployerTransactorGen: TransactorRandom(),
					ChainID:               testChainIDBig,
					RPCs:                  []evm.RPC{{Name: "fake", URL: newFakeRPCServer(t, big.NewInt(5)).URL}},
					ConfirmFunctor:        ConfirmFuncGeth(time.Second),
					Logger:                logger.Test(t),
				}
			},
			wantErr: "failed to create multi-client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewRPCChainProvider(tt.giveConfig(t))

			got, err := p.Initialize(t.Context())
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 0, got.ChainID.Cmp(testChainIDBig))
			assert.NotNil(t, got.Client)
			assert.NotNil(t, got.DeployerKey)
			assert.NotNil(t, got.Confirm)
			assert.Equal(t, got.From(), p.Chain().From())

			// Initializing twice returns the same chain.
			again, err := p.Initialize(t.Context())
			require.NoError(t, err)
			assert.Equal(t, got.From(), again.From())
		})
	}
}

func Test_RPCChainProvider_Name(t *testing.T) {
	t.Parallel()

	p := &RPCChainProvider{}
	assert.Equal(t, "EVM RPC Chain Provider", p.Name())
}
