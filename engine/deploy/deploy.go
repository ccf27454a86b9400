// Package deploy deploys the token contract and records its address.
package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-token-distributor/datastore"
	"github.com/smartcontractkit/chainlink-token-distributor/engine/session"
	"github.com/smartcontractkit/chainlink-token-distributor/operations"
	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

// DefaultGasLimit is the gas limit of the deployment transaction.
const DefaultGasLimit uint64 = 5_000_000

// Input is the serializable input of the deployment operation.
type Input struct {
	Params   token.DeployParams `json:"params"`
	GasLimit uint64             `json:"gasLimit"`
}

// Output is the outcome of a mined deployment.
type Output struct {
	Address     common.Address `json:"address"`
	TxHash      common.Hash    `json:"txHash"`
	Nonce       uint64         `json:"nonce"`
	BlockNumber uint64         `json:"blockNumber"`
	GasUsed     uint64         `json:"gasUsed"`
}

// Deps are the dependencies of the deployment operation.
type Deps struct {
	Session  *session.Session
	Artifact *token.Artifact
}

// DeployToken submits the contract creation transaction and waits for it to be mined.
var DeployToken = operations.NewOperation(
	"token-deploy",
	semver.MustParse("1.0.0"),
	"Deploys the ERC20 token contract",
	func(b operations.Bundle, deps Deps, input Input) (Output, error) {
		ctx := b.GetContext()
		s := deps.Session

		nonce, err := s.PendingNonce(ctx)
		if err != nil {
			return Output{}, err
		}
		fees, err := s.Fees(ctx)
		if err != nil {
			return Output{}, err
		}

		attempt, predicted, err := s.Signer.BuildDeploymentTx(deps.Artifact, input.Params, nonce, fees, input.GasLimit)
		if err != nil {
			return Output{}, err
		}
		b.Logger.Infow("Deploying token", "name", input.Params.Name, "symbol", input.Params.Symbol,
			"decimals", input.Params.Decimals, "totalSupply", input.Params.TotalSupply,
			"hash", attempt.Hash().Hex(), "fees", fees.String())

		receipt, err := s.Submit(ctx, attempt)
		if err != nil {
			return Output{}, fmt.Errorf("deployment tx %s: %w", attempt.Hash().Hex(), err)
		}

		address := receipt.ContractAddress
		if address == (common.Address{}) {
			address = predicted
		}

		out := Output{
			Address: address,
			TxHash:  attempt.Hash(),
			Nonce:   nonce,
			GasUsed: receipt.GasUsed,
		}
		if receipt.BlockNumber != nil {
			out.BlockNumber = receipt.BlockNumber.Uint64()
		}

		return out, nil
	},
)

// Coordinator deploys the token once per run: it loads the artifact, signs and submits the
// creation transaction, waits for it, binds the contract on the session and records the address.
type Coordinator struct {
	session  *session.Session
	store    datastore.MutableAddressRefStore
	reporter operations.Reporter
	lggr     logger.Logger
	gasLimit uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithGasLimit overrides DefaultGasLimit.
func WithGasLimit(limit uint64) Option {
	return func(c *Coordinator) {
		c.gasLimit = limit
	}
}

// WithReporter records the deployment report in reporter.
func WithReporter(reporter operations.Reporter) Option {
	return func(c *Coordinator) {
		c.reporter = reporter
	}
}

// NewCoordinator returns a Coordinator recording the deployed address in store.
func NewCoordinator(s *session.Session, store datastore.MutableAddressRefStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:  s,
		store:    store,
		reporter: operations.NewMemoryReporter(),
		lggr:     s.Logger.Named("deploy"),
		gasLimit: DefaultGasLimit,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Deploy deploys the token described by params from the artifact at artifactPath. The artifact
// and the parameters are validated before anything is sent. Any failure aborts the deployment.
//
// When the contract is deployed but its address cannot be recorded, the contract is still bound
// on the session and the error is returned along with the output.
func (c *Coordinator) Deploy(ctx context.Context, artifactPath string, params token.DeployParams) (*Output, error) {
	art, err := token.LoadArtifact(artifactPath)
	if err != nil {
		return nil, err
	}
	if err = params.Validate(); err != nil {
		return nil, err
	}
	if c.store == nil {
		return nil, errors.New("address store is required")
	}

	b := operations.NewBundle(func() context.Context { return ctx }, c.lggr, c.reporter)
	report, err := operations.ExecuteOperation(b, DeployToken,
		Deps{Session: c.session, Artifact: art},
		Input{Params: params, GasLimit: c.gasLimit},
	)
	if err != nil {
		c.lggr.Errorw("Token deployment failed", "error", err)
		return nil, err
	}
	out := report.Output

	contract := token.NewDeployedContract(out.Address, art)
	c.session.Bind(contract)
	c.lggr.Infow("Token deployed", "address", out.Address.Hex(), "hash", out.TxHash.Hex(),
		"block", out.BlockNumber, "gasUsed", out.GasUsed, "chain", c.session.Chain.Name())

	if err := c.store.Upsert(session.TokenRef(c.session.Chain, contract)); err != nil {
		c.lggr.Errorw("Failed to record the token address, record it manually",
			"address", out.Address.Hex(), "error", err)

		return &out, fmt.Errorf("failed to record token address %s: %w", out.Address.Hex(), err)
	}

	return &out, nil
}
