// Package session holds the state shared by the deployment and the distribution: the chain, the
// wallet, the gas policy and the bound token contract.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm/gas"
	"github.com/smartcontractkit/chainlink-token-distributor/datastore"
	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

// ErrNotDeployed is returned when an operation needs the token contract and none is bound, or the
// bound address holds no code.
var ErrNotDeployed = errors.New("token contract not deployed")

// ErrSendFailed wraps the errors of a submission the node did not accept.
var ErrSendFailed = errors.New("failed to send tx")

// Session is the context of one process run. It is created once and passed to the coordinators.
type Session struct {
	Chain  evm.Chain
	Signer *token.Signer
	Gas    gas.Policy
	Logger logger.Logger

	mu       sync.RWMutex
	contract *token.DeployedContract
}

// New creates a session for the wallet of chain.
func New(chain evm.Chain, policy gas.Policy, lggr logger.Logger) (*Session, error) {
	if chain.Client == nil {
		return nil, errors.New("chain client is required")
	}
	if chain.Confirm == nil {
		return nil, errors.New("chain confirm function is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gas policy: %w", err)
	}

	signer, err := token.NewSigner(chain.DeployerKey, chain.ChainID)
	if err != nil {
		return nil, err
	}

	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Session{
		Chain:  chain,
		Signer: signer,
		Gas:    policy,
		Logger: lggr,
	}, nil
}

// From returns the wallet address.
func (s *Session) From() common.Address {
	return s.Signer.From()
}

// Fees returns the fees of a transaction signed now.
func (s *Session) Fees(ctx context.Context) (gas.Fees, error) {
	fees, err := s.Gas.Suggest(ctx, s.Chain.Client)
	if err != nil {
		return gas.Fees{}, evm.ClassifyError(err)
	}

	return fees, nil
}

// PendingNonce returns the next nonce of the wallet, pending transactions included.
func (s *Session) PendingNonce(ctx context.Context) (uint64, error) {
	nonce, err := s.Chain.Client.PendingNonceAt(ctx, s.From())
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce of %s: %w", s.From().Hex(), evm.ClassifyError(err))
	}

	return nonce, nil
}

// Submit sends the signed attempt and waits for its receipt. A rejected submission fails with
// ErrSendFailed. It returns the receipt alongside evm.ErrTxReverted when the transaction was mined
// with a failed status.
func (s *Session) Submit(ctx context.Context, attempt *token.Attempt) (*types.Receipt, error) {
	hash := attempt.Hash()
	if err := s.Chain.Client.SendTransaction(ctx, attempt.Tx); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSendFailed, hash.Hex(), evm.ClassifyError(err))
	}
	s.Logger.Infow("Transaction submitted", "hash", hash.Hex(), "nonce", attempt.Nonce,
		"gasLimit", attempt.GasLimit, "maxFeePerGas", attempt.MaxFeePerGas,
		"maxPriorityFeePerGas", attempt.MaxPriorityFeePerGas)

	receipt, err := s.Chain.Confirm(ctx, attempt.Tx)
	if err != nil {
		return receipt, err
	}
	s.Logger.Infow("Transaction confirmed", "hash", hash.Hex(), "block", receipt.BlockNumber,
		"gasUsed", receipt.GasUsed)

	return receipt, nil
}

// Bind makes contract the token the session distributes.
func (s *Session) Bind(contract *token.DeployedContract) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contract = contract
}

// Contract returns the bound token, or ErrNotDeployed.
func (s *Session) Contract() (*token.DeployedContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.contract == nil {
		return nil, ErrNotDeployed
	}

	return s.contract, nil
}

// Rehydrate binds a token deployed by an earlier run. The address must hold code on the chain,
// otherwise ErrNotDeployed is returned. The contract interface is not checked.
func (s *Session) Rehydrate(ctx context.Context, address common.Address, art *token.Artifact) (*token.DeployedContract, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: no contract address", ErrNotDeployed)
	}
	if art == nil {
		return nil, fmt.Errorf("%w: artifact is required", token.ErrArtifactInvalid)
	}

	code, err := s.Chain.Client.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get code at %s: %w", address.Hex(), evm.ClassifyError(err))
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: no code at %s on %s", ErrNotDeployed, address.Hex(), s.Chain)
	}

	contract := token.NewDeployedContract(address, art)
	s.Bind(contract)
	s.Logger.Infow("Token contract rehydrated", "address", address.Hex(), "chain", s.Chain.Name())

	return contract, nil
}

// TokenRef returns the address ref recording contract on chain.
func TokenRef(chain evm.Chain, contract *token.DeployedContract) datastore.AddressRef {
	return datastore.AddressRef{
		Address: contract.Address.Hex(),
		ChainID: chain.ChainID.Uint64(),
		Type:    datastore.TokenContractType,
		Version: datastore.DefaultTokenVersion,
	}
}

// TokenRefKey returns the key of the token ref on chain.
func TokenRefKey(chain evm.Chain) datastore.AddressRefKey {
	return datastore.NewAddressRefKey(chain.ChainID.Uint64(), datastore.TokenContractType, datastore.DefaultTokenVersion, "")
}
