// Package distribute sends the bound token to a list of recipients, one transaction at a time.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/segmentio/ksuid"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/engine/session"
	"github.com/smartcontractkit/chainlink-token-distributor/operations"
	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

// ErrInsufficientBalance is returned when the wallet cannot be trusted to pay the gas of the run.
var ErrInsufficientBalance = errors.New("insufficient balance")

const (
	// DefaultInterTxDelay is the wait between two recipients.
	DefaultInterTxDelay = 7 * time.Minute
	// DefaultMaxAttempts bounds the submissions of a transfer rejected as underpriced.
	DefaultMaxAttempts = 5
	// DefaultRetryDelay is the first backoff of an underpriced transfer. It doubles on every
	// attempt.
	DefaultRetryDelay = 2 * time.Second
	// DefaultMaxRetryDelay caps the backoff.
	DefaultMaxRetryDelay = 30 * time.Second
)

// DefaultMinBalance is the balance required to start a run, 0.01 ether.
var DefaultMinBalance = new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(100))

// Config holds the tunables of a run.
type Config struct {
	InterTxDelay time.Duration
	MinBalance   *big.Int
	// Retry applies to underpriced submissions only. Its RetryIf is ignored.
	Retry operations.RetryPolicy
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		InterTxDelay: DefaultInterTxDelay,
		MinBalance:   new(big.Int).Set(DefaultMinBalance),
		Retry: operations.RetryPolicy{
			MaxAttempts: DefaultMaxAttempts,
			Delay:       DefaultRetryDelay,
			MaxDelay:    DefaultMaxRetryDelay,
		},
	}
}

func (c Config) validate() error {
	if c.InterTxDelay < 0 {
		return errors.New("inter tx delay must not be negative")
	}
	if c.MinBalance == nil || c.MinBalance.Sign() < 0 {
		return errors.New("min balance must be set and not negative")
	}
	if c.Retry.MaxAttempts == 0 {
		return errors.New("max attempts must be at least 1")
	}

	return nil
}

// TransferJob is the serializable input of the transfer operation.
type TransferJob struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

// TransferOutput is the outcome of a mined transfer.
type TransferOutput struct {
	TxHash      common.Hash `json:"txHash"`
	Nonce       uint64      `json:"nonce"`
	GasLimit    uint64      `json:"gasLimit"`
	BlockNumber uint64      `json:"blockNumber"`
	GasUsed     uint64      `json:"gasUsed"`
}

// TransferDeps are the dependencies of the transfer operation.
type TransferDeps struct {
	Session  *session.Session
	Contract *token.DeployedContract
}

// SubmittedTxError wraps a failure that happened after the node accepted the transaction, e.g. a
// confirmation timeout or a revert. The transaction may still be mined.
type SubmittedTxError struct {
	Hash  common.Hash
	Nonce uint64
	Err   error
}

func (e *SubmittedTxError) Error() string {
	return fmt.Sprintf("tx %s (nonce %d): %v", e.Hash.Hex(), e.Nonce, e.Err)
}

func (e *SubmittedTxError) Unwrap() error {
	return e.Err
}

// RejectedTxError wraps a signed transaction the node did not accept. After a transport failover
// the rejection may come from a node that already holds the transaction, e.g. "already known" or
// "nonce too low", so the hash is kept for reconciliation.
type RejectedTxError struct {
	Hash  common.Hash
	Nonce uint64
	Err   error
}

func (e *RejectedTxError) Error() string {
	return e.Err.Error()
}

func (e *RejectedTxError) Unwrap() error {
	return e.Err
}

// TransferToken sends one transfer: pending nonce, fees, gas estimate, sign, submit, confirm.
var TransferToken = operations.NewOperation(
	"token-transfer",
	semver.MustParse("1.0.0"),
	"Transfers tokens from the wallet to a recipient",
	func(b operations.Bundle, deps TransferDeps, job TransferJob) (TransferOutput, error) {
		ctx := b.GetContext()
		s := deps.Session

		nonce, err := s.PendingNonce(ctx)
		if err != nil {
			return TransferOutput{}, err
		}
		fees, err := s.Fees(ctx)
		if err != nil {
			return TransferOutput{}, err
		}

		data, err := deps.Contract.TransferCallData(job.Recipient, job.Amount)
		if err != nil {
			return TransferOutput{}, operations.NewUnrecoverableError(err)
		}
		gasLimit, err := s.Chain.Client.EstimateGas(ctx, ethereum.CallMsg{
			From:      s.From(),
			To:        &deps.Contract.Address,
			GasFeeCap: fees.MaxFeePerGas,
			GasTipCap: fees.MaxPriorityFeePerGas,
			Data:      data,
		})
		if err != nil {
			return TransferOutput{}, fmt.Errorf("failed to estimate gas: %w", evm.ClassifyError(err))
		}

		attempt, err := s.Signer.BuildTransferTx(deps.Contract, job.Recipient, job.Amount, nonce, fees, gasLimit)
		if err != nil {
			return TransferOutput{}, operations.NewUnrecoverableError(err)
		}

		receipt, err := s.Submit(ctx, attempt)
		if errors.Is(err, session.ErrSendFailed) {
			return TransferOutput{}, &RejectedTxError{Hash: attempt.Hash(), Nonce: nonce, Err: err}
		}
		if err != nil {
			return TransferOutput{}, &SubmittedTxError{Hash: attempt.Hash(), Nonce: nonce, Err: err}
		}

		out := TransferOutput{
			TxHash:   attempt.Hash(),
			Nonce:    nonce,
			GasLimit: gasLimit,
			GasUsed:  receipt.GasUsed,
		}
		if receipt.BlockNumber != nil {
			out.BlockNumber = receipt.BlockNumber.Uint64()
		}

		return out, nil
	},
)

// Coordinator runs distributions for the token bound on a session.
type Coordinator struct {
	session  *session.Session
	cfg      Config
	reporter operations.Reporter
	lggr     logger.Logger
	wait     func(ctx context.Context, d time.Duration) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReporter records a report of every transfer operation in reporter.
func WithReporter(reporter operations.Reporter) Option {
	return func(c *Coordinator) {
		c.reporter = reporter
	}
}

// NewCoordinator returns a Coordinator distributing with cfg.
func NewCoordinator(s *session.Session, cfg Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		session:  s,
		cfg:      cfg,
		reporter: operations.NewMemoryReporter(),
		lggr:     s.Logger.Named("distribute"),
		wait:     sleep,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Run sends amount whole tokens to every recipient in order, waiting InterTxDelay between two
// recipients. A failed transfer is recorded in the report and the run continues with the next
// recipient. Nothing is remembered across runs: running again sends to every recipient again.
//
// Run returns an error without a report when no contract is bound (session.ErrNotDeployed), when
// the wallet holds less than MinBalance (ErrInsufficientBalance) or when amount is invalid
// (token.ErrValidation). An amount that is not a positive number is rejected before any call to
// the chain. It returns the partial report and the context error when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, recipients []common.Address, amount string) (*Report, error) {
	if err := token.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}

	contract, err := c.session.Contract()
	if err != nil {
		return nil, err
	}

	if err := c.checkBalance(ctx); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     ksuid.New().String(),
		Chain:     c.session.Chain.Name(),
		Token:     contract.Address,
		Amount:    amount,
		StartedAt: time.Now(),
	}
	lggr := c.lggr.With("runID", report.RunID)

	if len(recipients) == 0 {
		lggr.Warnw("No recipients, nothing to send")
		report.FinishedAt = time.Now()

		return report, nil
	}

	decimals, err := contract.Decimals(ctx, c.session.Chain.Client)
	if err != nil {
		return nil, evm.ClassifyError(err)
	}
	units, err := token.ParseUnits(amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	report.Units = units.String()

	lggr.Infow("Starting distribution", "recipients", len(recipients), "amount", amount,
		"decimals", decimals, "token", contract.Address.Hex(), "chain", report.Chain)

	b := operations.NewBundle(func() context.Context { return ctx }, lggr, c.reporter)
	for i, recipient := range recipients {
		lggr.Infow("Sending tokens", "recipient", recipient.Hex(), "index", i+1, "total", len(recipients))

		res := c.transfer(b, contract, TransferJob{Recipient: recipient, Amount: units})
		report.add(res)

		if err := ctx.Err(); err != nil {
			return c.finish(lggr, report), err
		}

		if i < len(recipients)-1 && c.cfg.InterTxDelay > 0 {
			lggr.Infow("Waiting before the next transfer", "delay", c.cfg.InterTxDelay)
			if err := c.wait(ctx, c.cfg.InterTxDelay); err != nil {
				return c.finish(lggr, report), err
			}
		}
	}

	return c.finish(lggr, report), nil
}

func (c *Coordinator) checkBalance(ctx context.Context) error {
	from := c.session.From()
	balance, err := c.session.Chain.Client.BalanceAt(ctx, from, nil)
	if err != nil {
		return fmt.Errorf("failed to get balance of %s: %w", from.Hex(), evm.ClassifyError(err))
	}
	c.lggr.Infow("Wallet balance", "address", from.Hex(), "balance", token.FormatUnits(balance, 18))

	if balance.Cmp(c.cfg.MinBalance) < 0 {
		return fmt.Errorf("%w: %s holds %s, at least %s is required to cover gas", ErrInsufficientBalance,
			from.Hex(), token.FormatUnits(balance, 18), token.FormatUnits(c.cfg.MinBalance, 18))
	}

	return nil
}

func (c *Coordinator) transfer(b operations.Bundle, contract *token.DeployedContract, job TransferJob) Result {
	policy := c.cfg.Retry
	policy.RetryIf = evm.IsUnderpriced

	opReport, err := operations.ExecuteOperation(b, TransferToken,
		TransferDeps{Session: c.session, Contract: contract},
		job,
		operations.WithRetryConfig(operations.RetryConfig[TransferJob, TransferDeps]{
			Enabled: true,
			Policy:  policy,
		}),
	)

	res := Result{Recipient: job.Recipient, Attempts: opReport.Attempts}
	if err == nil {
		hash, nonce := opReport.Output.TxHash, opReport.Output.Nonce
		res.Status = StatusConfirmed
		res.TxHash = &hash
		res.Nonce = &nonce
		b.Logger.Infow("Tokens sent", "recipient", job.Recipient.Hex(), "hash", hash.Hex(), "nonce", nonce)

		return res
	}

	if evm.IsUnderpriced(err) && opReport.Attempts >= policy.MaxAttempts {
		err = &evm.RetryExhaustedError{Attempts: opReport.Attempts, Err: err}
	}

	var (
		submitted *SubmittedTxError
		rejected  *RejectedTxError
	)
	switch {
	case errors.As(err, &submitted):
		res.TxHash = &submitted.Hash
		res.Nonce = &submitted.Nonce
	case errors.As(err, &rejected):
		res.TxHash = &rejected.Hash
		res.Nonce = &rejected.Nonce
	}
	res.Status = StatusFailed
	res.Err = err
	res.Error = err.Error()
	b.Logger.Errorw("Failed to send tokens", "recipient", job.Recipient.Hex(), "attempts", res.Attempts, "error", err)

	return res
}

func (c *Coordinator) finish(lggr logger.Logger, report *Report) *Report {
	report.FinishedAt = time.Now()

	lggr.Infow("Distribution finished", "attempted", report.Attempted, "succeeded", report.Succeeded,
		"failed", report.Failed, "duration", report.FinishedAt.Sub(report.StartedAt))
	for _, res := range report.FailedResults() {
		lggr.Errorw("Recipient not paid", "recipient", res.Recipient.Hex(), "error", res.Error)
	}

	return report
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
