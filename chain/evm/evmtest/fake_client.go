// Package evmtest provides an in memory ChainClient for testing code that sends transactions.
package evmtest

import (
	"context"
	"math/big"
	"slices"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
)

// Method names recorded by FakeClient.
const (
	MethodChainID            = "ChainID"
	MethodSuggestGasPrice    = "SuggestGasPrice"
	MethodPendingNonceAt     = "PendingNonceAt"
	MethodBalanceAt          = "BalanceAt"
	MethodEstimateGas        = "EstimateGas"
	MethodSendTransaction    = "SendTransaction"
	MethodTransactionReceipt = "TransactionReceipt"
	MethodCallContract       = "CallContract"
	MethodCodeAt             = "CodeAt"
	MethodConfirm            = "Confirm"
)

var _ evm.ChainClient = (*FakeClient)(nil)

// FakeClient is an in memory evm.ChainClient. Every sent transaction is mined immediately with a
// successful status unless a hook says otherwise. It records the order of the calls it receives.
//
// The exported fields may be set before use. They must not be changed while a test is running.
type FakeClient struct {
	ChainIDValue *big.Int
	GasPrice     *big.Int
	Balance      *big.Int
	Code         []byte
	GasEstimate  uint64
	// CallResult is returned by CallContract.
	CallResult []byte

	// Errors forces the named method to fail.
	Errors map[string]error
	// SendErrors are returned by consecutive SendTransaction calls. A nil entry, or running out
	// of entries, lets the transaction through.
	SendErrors []error
	// ConfirmHook, when set, replaces the receipt lookup of Confirm.
	ConfirmHook func(tx *types.Transaction) (*types.Receipt, error)

	mu        sync.Mutex
	nonce     uint64
	sendCalls int
	calls     []string
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
}

// NewFakeClient returns a client for chainID with a 1 gwei gas price, 100 ether balance, non empty
// code, a 50,000 gas estimate and a decimals() result of 18.
func NewFakeClient(chainID *big.Int) *FakeClient {
	return &FakeClient{
		ChainIDValue: chainID,
		GasPrice:     big.NewInt(params.GWei),
		Balance:      new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether)),
		Code:         []byte{0x60, 0x00},
		GasEstimate:  50_000,
		CallResult:   common.LeftPadBytes([]byte{18}, 32),
		Errors:       map[string]error{},
		receipts:     map[common.Hash]*types.Receipt{},
	}
}

// Chain returns a chain backed by the client with a freshly generated wallet.
func (c *FakeClient) Chain(t *testing.T) evm.Chain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, c.ChainIDValue)
	require.NoError(t, err)

	return evm.Chain{
		ChainID:     c.ChainIDValue,
		Client:      c,
		DeployerKey: opts,
		Confirm:     c.Confirm,
	}
}

func (c *FakeClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, method)

	return c.Errors[method]
}

// Calls returns the names of the methods called so far, in order.
func (c *FakeClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.calls)
}

// Sent returns the transactions accepted by SendTransaction, in order.
func (c *FakeClient) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.sent)
}

// CallCount returns how many times method was called.
func (c *FakeClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, m := range c.calls {
		if m == method {
			n++
		}
	}

	return n
}

func (c *FakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.record(MethodChainID); err != nil {
		return nil, err
	}

	return c.ChainIDValue, nil
}

func (c *FakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.record(MethodSuggestGasPrice); err != nil {
		return nil, err
	}

	return new(big.Int).Set(c.GasPrice), nil
}

func (c *FakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.record(MethodPendingNonceAt); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nonce, nil
}

func (c *FakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := c.record(MethodBalanceAt); err != nil {
		return nil, err
	}

	return new(big.Int).Set(c.Balance), nil
}

func (c *FakeClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if err := c.record(MethodEstimateGas); err != nil {
		return 0, err
	}

	return c.GasEstimate, nil
}

func (c *FakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.record(MethodSendTransaction); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.sendCalls
	c.sendCalls++
	if idx < len(c.SendErrors) && c.SendErrors[idx] != nil {
		return c.SendErrors[idx]
	}

	c.sent = append(c.sent, tx)
	c.nonce = tx.Nonce() + 1
	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas() / 2,
		BlockNumber: big.NewInt(int64(len(c.sent))),
	}
	if tx.To() == nil {
		receipt.ContractAddress = crypto.CreateAddress(senderOf(tx), tx.Nonce())
	}
	c.receipts[tx.Hash()] = receipt

	return nil
}

func (c *FakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.record(MethodTransactionReceipt); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}

	return receipt, nil
}

func (c *FakeClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.record(MethodCallContract); err != nil {
		return nil, err
	}

	return c.CallResult, nil
}

func (c *FakeClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if err := c.record(MethodCodeAt); err != nil {
		return nil, err
	}

	return c.Code, nil
}

// Confirm is an evm.ConfirmFunc returning the receipt of a sent transaction.
func (c *FakeClient) Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := c.record(MethodConfirm); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.ConfirmHook != nil {
		return c.ConfirmHook(tx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, ok := c.receipts[tx.Hash()]
	if !ok {
		return nil, ethereum.NotFound
	}

	return receipt, nil
}

func senderOf(tx *types.Transaction) common.Address {
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return common.Address{}
	}

	return from
}
