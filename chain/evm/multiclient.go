package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
)

const (
	// Default retry configuration for RPC calls
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = 1000 * time.Millisecond
	RPCDefaultRetryTimeout  = 10 * time.Second

	// Default retry configuration for dialing RPC endpoints
	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = 1000 * time.Millisecond
	RPCDefaultDialTimeout       = 10 * time.Second

	// Default timeout for health checks
	RPCDefaultHealthCheckTimeout = 2 * time.Second
)

type RetryConfig struct {
	Attempts     uint
	Delay        time.Duration
	Timeout      time.Duration
	DialAttempts uint
	DialDelay    time.Duration
	DialTimeout  time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     RPCDefaultRetryAttempts,
		Delay:        RPCDefaultRetryDelay,
		Timeout:      RPCDefaultRetryTimeout,
		DialAttempts: RPCDefaultDialRetryAttempts,
		DialDelay:    RPCDefaultDialRetryDelay,
		DialTimeout:  RPCDefaultDialTimeout,
	}
}

// WithRetryConfig overrides the retry configuration of a MultiClient.
func WithRetryConfig(cfg RetryConfig) func(*MultiClient) {
	return func(mc *MultiClient) {
		mc.RetryConfig = cfg
	}
}

var _ ChainClient = &MultiClient{}

// MultiClient is a ChainClient over one preferred RPC and any number of backups. Transport
// failures are retried and then failed over to the next endpoint; errors the node answered
// with are returned immediately, classified by ClassifyError.
type MultiClient struct {
	*ethclient.Client
	Backups     []*ethclient.Client
	RetryConfig RetryConfig
	lggr        logger.Logger
	chainID     *big.Int
	chainName   string
	mu          sync.RWMutex
}

// NewMultiClient dials every configured RPC, keeps those that pass a health check and serve the
// expected chain id, and returns a client using the first healthy one as primary.
func NewMultiClient(lggr logger.Logger, rpcsCfg RPCConfig, opts ...func(client *MultiClient)) (*MultiClient, error) {
	if err := rpcsCfg.validate(); err != nil {
		return nil, err
	}

	want := rpcsCfg.ChainID
	mc := MultiClient{lggr: lggr, chainName: Chain{ChainID: want}.Name()}

	mc.RetryConfig = defaultRetryConfig()

	for _, opt := range opts {
		opt(&mc)
	}

	clients := make([]*ethclient.Client, 0, len(rpcsCfg.RPCs))
	for i, rpc := range rpcsCfg.RPCs {
		client, err := mc.dialWithRetry(rpc)
		if err != nil {
			lggr.Warnw("Skipping RPC, dial failed", "client", i, "rpc", rpc.Name, "error", err)

			continue
		}
		got, err := mc.rpcHealthCheck(context.Background(), client, want)
		if err != nil {
			lggr.Warnw("Skipping RPC, health check failed", "client", i, "rpc", rpc.Name, "error", err)
			client.Close()

			continue
		}
		if want == nil {
			want = got
			mc.chainName = Chain{ChainID: want}.Name()
		}
		clients = append(clients, client)
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("%w: no valid RPC clients created", ErrNetwork)
	}

	mc.Client = clients[0]
	mc.Backups = clients[1:]
	mc.chainID = want

	return &mc, nil
}

// rpcHealthCheck asks the endpoint for its chain id and rejects endpoints serving another chain
// than want. A nil want accepts any chain id.
func (mc *MultiClient) rpcHealthCheck(ctx context.Context, client *ethclient.Client, want *big.Int) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, RPCDefaultHealthCheckTimeout)
	defer cancel()

	got, err := client.ChainID(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	if want != nil && got.Cmp(want) != 0 {
		return nil, fmt.Errorf("health check failed: endpoint serves chain id %s, expected %s", got, want)
	}

	return got, nil
}

// ConfiguredChainID returns the chain id every endpoint of the client was checked against.
func (mc *MultiClient) ConfiguredChainID() *big.Int {
	return new(big.Int).Set(mc.chainID)
}

func (mc *MultiClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := mc.retryWithBackups(ctx, "ChainID", func(ct context.Context, client *ethclient.Client) error {
		var err error
		id, err = client.ChainID(ct)

		return err
	})

	return id, err
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice *big.Int
	err := mc.retryWithBackups(ctx, "SuggestGasPrice", func(ct context.Context, client *ethclient.Client) error {
		var err error
		gasPrice, err = client.SuggestGasPrice(ct)

		return err
	})

	return gasPrice, err
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var count uint64
	err := mc.retryWithBackups(ctx, "PendingNonceAt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		count, err = client.PendingNonceAt(ct, account)

		return err
	})

	return count, err
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	var balance *big.Int
	err := mc.retryWithBackups(ctx, "BalanceAt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		balance, err = client.BalanceAt(ct, account, blockNumber)

		return err
	})

	return balance, err
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := mc.retryWithBackups(ctx, "EstimateGas", func(ct context.Context, client *ethclient.Client) error {
		var err error
		gas, err = client.EstimateGas(ct, call)

		return err
	})

	return gas, err
}

func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return mc.retryWithBackups(ctx, "SendTransaction", func(ct context.Context, client *ethclient.Client) error {
		return client.SendTransaction(ct, tx)
	})
}

func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := mc.retryWithBackups(ctx, "TransactionReceipt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		receipt, err = client.TransactionReceipt(ct, txHash)

		return err
	})

	return receipt, err
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := mc.retryWithBackups(ctx, "CallContract", func(ct context.Context, client *ethclient.Client) error {
		var err error
		result, err = client.CallContract(ct, msg, blockNumber)

		return err
	})

	return result, err
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var code []byte
	err := mc.retryWithBackups(ctx, "CodeAt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		code, err = client.CodeAt(ct, account, blockNumber)

		return err
	})

	return code, err
}

// Close closes the primary and every backup client.
func (mc *MultiClient) Close() {
	for _, c := range mc.clients() {
		c.Close()
	}
}

// retryWithBackups runs op on the primary client, retrying transport failures, then on each
// backup in turn. The first client that succeeds becomes the primary.
func (mc *MultiClient) retryWithBackups(ctx context.Context, opName string, op func(context.Context, *ethclient.Client) error) error {
	lggr := mc.lggr.With("traceID", uuid.NewString(), "chain", mc.chainName, "op", opName)

	var lastErr error
	for rpcIndex, client := range mc.clients() {
		var retries uint
		err := retry.Do(func() error {
			callCtx, cancel := ensureTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			lastErr = op(callCtx, client)
			switch {
			case lastErr == nil:
				return nil
			case !isTransient(ctx, lastErr):
				return retry.Unrecoverable(lastErr)
			default:
				lggr.Warnw("RPC call failed, retrying", "client", rpcIndex, "error", maybeDataErr(lastErr))
				return lastErr
			}
		},
			retry.Context(ctx),
			retry.Attempts(mc.RetryConfig.Attempts),
			retry.Delay(mc.RetryConfig.Delay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(uint, error) { retries++ }),
		)
		if err == nil {
			mc.reorderRPCs(rpcIndex)
			if retries > 0 {
				lggr.Infow("RPC call succeeded after retries", "client", rpcIndex, "retries", retries)
			}

			return nil
		}
		if !isTransient(ctx, lastErr) {
			// The node answered, a backup would answer the same.
			return ClassifyError(lastErr)
		}
		lggr.Warnw("RPC client failed, trying the next one", "client", rpcIndex, "error", maybeDataErr(lastErr))
	}

	return ClassifyError(errors.Join(lastErr, fmt.Errorf("every RPC of chain %s failed", mc.chainName)))
}

// isTransient reports whether a failed call is worth retrying or failing over. Node rejections,
// missing receipts and a cancelled caller are not.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ethereum.NotFound) || IsUnderpriced(err) {
		return false
	}

	return !isNodeRejection(err)
}

func (mc *MultiClient) dialWithRetry(rpc RPC) (*ethclient.Client, error) {
	endpoint, err := rpc.ToEndpoint()
	if err != nil {
		return nil, err
	}

	lggr := mc.lggr.With("traceID", uuid.NewString(), "chain", mc.chainName, "rpc", rpc.Name)

	var retries uint
	client, err := retry.DoWithData(func() (*ethclient.Client, error) {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		lggr.Debugw("Dialing RPC endpoint", "endpoint", endpoint)
		c, dialErr := ethclient.DialContext(ctx, endpoint)
		if dialErr != nil {
			lggr.Warnw("Dialing RPC endpoint failed", "endpoint", endpoint, "error", dialErr)
		}

		return c, dialErr
	},
		retry.Attempts(mc.RetryConfig.DialAttempts),
		retry.Delay(mc.RetryConfig.DialDelay),
		retry.OnRetry(func(uint, error) { retries++ }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s after %d attempts: %w", rpc.Name, retries+1, err)
	}
	if retries > 0 {
		lggr.Infow("Dialed RPC endpoint after retries", "endpoint", endpoint, "retries", retries)
	}

	return client, nil
}

// ensureTimeout keeps the deadline of parent when it has one and applies timeout otherwise.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); hasDeadline {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}

// reorderRPCs promotes the backup at rpcIndex to primary after it served a call, moving the
// endpoints that failed before it to the end of the backup list.
func (mc *MultiClient) reorderRPCs(rpcIndex int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if rpcIndex < 1 || len(mc.Backups) == 0 {
		return
	}

	promoted := rpcIndex - 1
	primary := mc.Backups[promoted]

	backups := make([]*ethclient.Client, 0, len(mc.Backups))
	backups = append(backups, mc.Backups[promoted+1:]...)
	backups = append(backups, mc.Backups[:promoted]...)
	backups = append(backups, mc.Client)

	mc.Client, mc.Backups = primary, backups
}

func (mc *MultiClient) clients() []*ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]*ethclient.Client{mc.Client}, mc.Backups...)
}

func maybeDataErr(err error) error {
	var d rpc.DataError
	ok := errors.As(err, &d)
	if ok {
		return fmt.Errorf("%s: %v", d.Error(), d.ErrorData())
	}

	return err
}
