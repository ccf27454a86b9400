package provider

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newFakeRPCServer returns a fake RPC server which answers eth_chainId with chainID and every
// other method with "0x1".
//
// When the test is done, the server is closed automatically.
func newFakeRPCServer(t *testing.T, chainID *big.Int) *httptest.Server {
	t.Helper()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		result := "0x1"
		if req.Method == "eth_chainId" {
			result = hexutil.EncodeBig(chainID)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"` + result + `"}`))
	})

	srv := httptest.NewServer(handler)

	t.Cleanup(func() {
		srv.Close()
	})

	return srv
}

// alwaysFailingSignerGenerator returns a SignerGenerator that always fails with an error.
type alwaysFailingSignerGenerator struct{}

func (a *alwaysFailingSignerGenerator) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	return nil, assert.AnError
}

func (a *alwaysFailingSignerGenerator) SignHash(hash []byte) ([]byte, error) {
	return nil, assert.AnError
}

// pendingReceipts is a ReceiptSource that never finds a receipt and counts the lookups.
type pendingReceipts struct {
	lookups atomic.Int32
}

func (p *pendingReceipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	p.lookups.Add(1)

	return nil, ethereum.NotFound
}

func (p *pendingReceipts) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

// MockContractCaller is a testify mock of ContractCaller.
type MockContractCaller struct {
	mock.Mock
}

func NewMockContractCaller(t *testing.T) *MockContractCaller {
	t.Helper()

	m := &MockContractCaller{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockContractCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, call, blockNumber)

	var out []byte
	if v := args.Get(0); v != nil {
		out = v.([]byte)
	}

	return out, args.Error(1)
}
