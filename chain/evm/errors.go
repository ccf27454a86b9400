package evm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNetwork marks an RPC call that failed in transport: timeouts, refused connections or a
	// malformed response. Callers decide whether the failure is fatal.
	ErrNetwork = errors.New("network error")
	// ErrTxUnderpriced marks a submission the node rejected because its fee was too low to
	// replace a pending transaction with the same nonce.
	ErrTxUnderpriced = errors.New("transaction underpriced")
	// ErrTxReverted marks a transaction that was mined with a failed status.
	ErrTxReverted = errors.New("transaction reverted")
)

// underpricedMessages are the node rejection messages treated as ErrTxUnderpriced. Geth uses
// the first two, other clients phrase the fee check differently.
var underpricedMessages = []string{
	"replacement transaction underpriced",
	"transaction underpriced",
	"replacement fee too low",
	"fee too low",
}

// TxTimeoutError is returned when a submitted transaction was not observed as mined within the
// confirmation window. The transaction may still be mined later.
type TxTimeoutError struct {
	Hash    common.Hash
	Timeout time.Duration
}

func (e *TxTimeoutError) Error() string {
	return fmt.Sprintf("tx %s was not mined within %s", e.Hash.Hex(), e.Timeout)
}

// RetryExhaustedError is returned when an operation kept failing with a retryable error until
// the attempt bound was reached.
type RetryExhaustedError struct {
	Attempts uint
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsUnderpriced reports whether err is a fee-too-low rejection, either already classified or
// still carrying the raw node message.
func IsUnderpriced(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTxUnderpriced) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range underpricedMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}

// ClassifyError maps an error returned by a node call onto the error taxonomy. Rejections the
// node answered with are kept as they are, except fee rejections which become
// ErrTxUnderpriced. Everything else, apart from context cancellation and a missing receipt, is
// a transport failure and wrapped in ErrNetwork.
func ClassifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTxUnderpriced), errors.Is(err, ErrNetwork):
		return err
	case IsUnderpriced(err):
		return fmt.Errorf("%w: %w", ErrTxUnderpriced, err)
	case errors.Is(err, ethereum.NotFound),
		errors.Is(err, context.Canceled):
		return err
	case isNodeRejection(err):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}

// isNodeRejection reports whether the node answered the request with a JSON-RPC error, as
// opposed to the request never completing.
func isNodeRejection(err error) bool {
	var rpcErr rpc.Error

	return errors.As(err, &rpcErr)
}
