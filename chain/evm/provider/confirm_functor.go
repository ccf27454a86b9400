package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
)

const (
	// DefaultConfirmTimeout bounds how long a submitted transaction is polled for.
	DefaultConfirmTimeout = 60 * time.Second
	// DefaultTickInterval is the receipt polling interval.
	DefaultTickInterval = 5 * time.Second
)

// ReceiptReader is implemented by clients that can look up transaction receipts.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ReceiptSource is the part of a chain client the confirmation function reads from.
type ReceiptSource interface {
	ReceiptReader
	ContractCaller
}

// ConfirmFunctor is an interface for creating a confirmation function for transactions on the
// EVM chain.
type ConfirmFunctor interface {
	// Generate returns a function that confirms transactions sent by from.
	Generate(client ReceiptSource, from common.Address) (evm.ConfirmFunc, error)
}

// ConfirmFuncGeth returns a ConfirmFunctor that polls the node for the receipt until it is
// found or waitMinedTimeout elapses.
func ConfirmFuncGeth(waitMinedTimeout time.Duration, opts ...func(*confirmFuncGeth)) ConfirmFunctor {
	cf := &confirmFuncGeth{
		tickInterval:     DefaultTickInterval,
		waitMinedTimeout: waitMinedTimeout,
	}
	for _, o := range opts {
		o(cf)
	}

	return cf
}

func WithTickInterval(interval time.Duration) func(*confirmFuncGeth) {
	return func(o *confirmFuncGeth) {
		o.tickInterval = interval
	}
}

// confirmFuncGeth implements the ConfirmFunctor interface which generates a confirmation function
// for transactions using the Geth client.
type confirmFuncGeth struct {
	tickInterval     time.Duration
	waitMinedTimeout time.Duration
}

// Generate returns a function that confirms transactions using the Geth client.
//
// The returned function fails with *evm.TxTimeoutError when no receipt was seen within the
// timeout and with evm.ErrTxReverted when the transaction was mined with a failed status.
func (g *confirmFuncGeth) Generate(client ReceiptSource, from common.Address) (evm.ConfirmFunc, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if g.tickInterval <= 0 || g.waitMinedTimeout <= 0 {
		return nil, fmt.Errorf("tick interval (%s) and timeout (%s) must be positive", g.tickInterval, g.waitMinedTimeout)
	}

	return func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		if tx == nil {
			return nil, errors.New("tx was nil, nothing to confirm")
		}

		ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
		defer cancel()

		receipt, err := WaitMinedWithInterval(ctxTimeout, g.tickInterval, client, tx.Hash())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &evm.TxTimeoutError{Hash: tx.Hash(), Timeout: g.waitMinedTimeout}
			}

			return nil, fmt.Errorf("tx %s failed to confirm: %w", tx.Hash().Hex(), err)
		}
		if receipt == nil {
			return nil, fmt.Errorf("receipt was nil for tx %s", tx.Hash().Hex())
		}

		if receipt.Status == types.ReceiptStatusFailed {
			reason, rerr := getErrorReasonFromTx(ctx, client, from, tx, receipt)
			if rerr == nil && reason != "" {
				return receipt, fmt.Errorf("%w: tx %s: %s", evm.ErrTxReverted, tx.Hash().Hex(), reason)
			}

			return receipt, fmt.Errorf("%w: tx %s, could not decode error reason", evm.ErrTxReverted, tx.Hash().Hex())
		}

		return receipt, nil
	}, nil
}

// WaitMinedWithInterval polls for the receipt of txHash every tick until it is found or ctx is
// done. The first query is made immediately. Lookup errors, ethereum.NotFound included, do not
// stop the polling.
func WaitMinedWithInterval(ctx context.Context, tick time.Duration, b ReceiptReader, txHash common.Hash) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-queryTicker.C:
		}
	}
}
