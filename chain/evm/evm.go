package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	chainsel "github.com/smartcontractkit/chain-selectors"
)

// ConfirmFunc waits for a submitted transaction to be mined and returns its receipt.
type ConfirmFunc func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// ChainClient is the set of JSON-RPC calls the distributor needs from an EVM node. Both
// *ethclient.Client and the simulated backend client satisfy it, as does MultiClient.
//
// TransactionReceipt returns ethereum.NotFound while a transaction is still pending.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Chain represents the single EVM chain the distributor operates on.
type Chain struct {
	ChainID *big.Int

	Client ChainClient
	// DeployerKey is the distributor wallet. Its Signer is used for every outgoing transaction.
	DeployerKey *bind.TransactOpts
	Confirm     ConfirmFunc
}

// Name returns the chain-selectors name of the chain, or the numeric chain id when the chain is
// not a registered one.
func (c Chain) Name() string {
	if c.ChainID == nil {
		return ""
	}

	if c.ChainID.IsUint64() {
		if details, ok := chainsel.ChainByEvmChainID(c.ChainID.Uint64()); ok && details.Name != "" {
			return details.Name
		}
	}

	return c.ChainID.String()
}

// String returns "<name> (<chain id>)".
func (c Chain) String() string {
	if c.ChainID == nil {
		return ""
	}

	return fmt.Sprintf("%s (%s)", c.Name(), c.ChainID)
}

// From returns the distributor wallet address.
func (c Chain) From() common.Address {
	if c.DeployerKey == nil {
		return common.Address{}
	}

	return c.DeployerKey.From
}
