package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
)

// RPCChainProviderConfig holds the configuration to initialize the RPCChainProvider.
type RPCChainProviderConfig struct {
	// Required: A generator for the distributor wallet. Use TransactorFromRaw to create it from
	// a private key.
	DeployerTransactorGen SignerGenerator
	// Optional: The id of the chain the RPCs must serve. When nil, the chain id served by the
	// first healthy RPC is used.
	ChainID *big.Int
	// Required: At least one RPC must be provided to connect to the EVM node. The first one is
	// preferred, the rest are backups.
	RPCs []evm.RPC
	// Required: ConfirmFunctor generates the confirmation function for transactions.
	// If in doubt, use ConfirmFuncGeth(DefaultConfirmTimeout).
	ConfirmFunctor ConfirmFunctor
	// Optional: ClientOpts are additional options to configure the MultiClient, e.g.
	// evm.WithRetryConfig.
	ClientOpts []func(client *evm.MultiClient)
	// Optional: Logger is the logger to use for the RPCChainProvider. If not provided, a default
	// logger will be used.
	Logger logger.Logger
}

// validate checks if the RPCChainProviderConfig is valid.
func (c RPCChainProviderConfig) validate() error {
	if c.DeployerTransactorGen == nil {
		return errors.New("deployer transactor generator is required")
	}
	if c.ConfirmFunctor == nil {
		return errors.New("confirm functor is required")
	}
	if c.ChainID != nil && c.ChainID.Sign() <= 0 {
		return errors.New("chain id must be positive")
	}
	if len(c.RPCs) == 0 {
		return errors.New("at least one RPC is required")
	}

	return nil
}

// RPCChainProvider is a chain provider that provides a chain that connects to an EVM node via RPC.
type RPCChainProvider struct {
	config RPCChainProviderConfig

	chain *evm.Chain
}

// NewRPCChainProvider creates a new RPCChainProvider with the given configuration.
func NewRPCChainProvider(config RPCChainProviderConfig) *RPCChainProvider {
	return &RPCChainProvider{
		config: config,
	}
}

// Initialize sets up the EVM chain with the provided configuration: it derives the wallet,
// dials the RPCs and generates the confirmation function.
func (p *RPCChainProvider) Initialize(_ context.Context) (evm.Chain, error) {
	if p.chain != nil {
		return *p.chain, nil // Already initialized
	}

	// Set up the logger if not provided
	if p.config.Logger == nil {
		lggr, err := logger.New()
		if err != nil {
			return evm.Chain{}, fmt.Errorf("failed to create default logger: %w", err)
		}
		p.config.Logger = lggr
	}

	// Validate the provider configuration
	if err := p.config.validate(); err != nil {
		return evm.Chain{}, fmt.Errorf("failed to validate provider config: %w", err)
	}

	// Setup the client.
	client, err := evm.NewMultiClient(p.config.Logger.Named("rpc"), evm.RPCConfig{
		ChainID: p.config.ChainID,
		RPCs:    p.config.RPCs,
	}, p.config.ClientOpts...)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to create multi-client: %w", err)
	}
	chainID := client.ConfiguredChainID()

	// Generate the deployer key using the provided transactor generator
	deployerKey, err := p.config.DeployerTransactorGen.Generate(chainID)
	if err != nil {
		client.Close()

		return evm.Chain{}, fmt.Errorf("failed to generate deployer key: %w", err)
	}

	// Setup the confirm function
	confirmFunc, err := p.config.ConfirmFunctor.Generate(client, deployerKey.From)
	if err != nil {
		client.Close()

		return evm.Chain{}, fmt.Errorf("failed to generate confirm function: %w", err)
	}

	p.chain = &evm.Chain{
		ChainID:     chainID,
		Client:      client,
		DeployerKey: deployerKey,
		Confirm:     confirmFunc,
	}

	return *p.chain, nil
}

// Name returns the name of the RPCChainProvider.
func (*RPCChainProvider) Name() string {
	return "EVM RPC Chain Provider"
}

// Chain returns the chain instance managed by this provider. You must call Initialize before
// using this method to ensure the chain is properly set up.
func (p *RPCChainProvider) Chain() evm.Chain {
	return *p.chain
}
