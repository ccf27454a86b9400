package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
)

var ErrNotSerializable = errors.New("data cannot be safely written to disk without data lost, " +
	"avoid type that can't be serialized")

// ExecuteConfig is the configuration for the ExecuteOperation function.
type ExecuteConfig[IN, DEP any] struct {
	retryConfig RetryConfig[IN, DEP]
}

type ExecuteOption[IN, DEP any] func(*ExecuteConfig[IN, DEP])

type RetryConfig[IN, DEP any] struct {
	// Enabled determines if the retry is enabled for the operation.
	Enabled bool

	// Policy is the retry policy to control the behavior of the retry.
	Policy RetryPolicy

	// InputHook is a function that returns an updated input before retrying the operation.
	// The operation when retried will use the input returned by this function.
	InputHook func(attempt uint, err error, input IN, deps DEP) IN
}

func newDisabledRetryConfig[IN, DEP any]() RetryConfig[IN, DEP] {
	return RetryConfig[IN, DEP]{
		Enabled: false,
		Policy:  DefaultRetryPolicy(),
	}
}

// RetryPolicy defines the arguments to control the retry behavior.
type RetryPolicy struct {
	// MaxAttempts is the total number of executions, the first one included.
	MaxAttempts uint
	// Delay is the initial backoff delay. It doubles after every failed attempt.
	Delay time.Duration
	// MaxDelay caps the backoff delay. Zero means no cap.
	MaxDelay time.Duration
	// RetryIf selects the errors worth retrying. Nil retries every recoverable error.
	RetryIf func(error) bool
}

// DefaultRetryPolicy returns the policy used by WithRetry: 5 attempts, starting at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Delay:       time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// options returns the 'avast/retry' functional options for the retry policy.
func (p RetryPolicy) options() []retry.Option {
	opts := []retry.Option{
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if p.MaxDelay > 0 {
		opts = append(opts, retry.MaxDelay(p.MaxDelay))
	}
	if p.RetryIf != nil {
		opts = append(opts, retry.RetryIf(p.RetryIf))
	}

	return opts
}

// WithRetry is an ExecuteOption that enables the default retry for the operation.
func WithRetry[IN, DEP any]() ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig.Enabled = true
	}
}

// WithRetryInput is an ExecuteOption that enables the default retry and provide an input
// transform function which will modify the input on each retry attempt.
func WithRetryInput[IN, DEP any](inputHookFunc func(uint, error, IN, DEP) IN) ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig.Enabled = true
		c.retryConfig.InputHook = inputHookFunc
	}
}

// WithRetryConfig is an ExecuteOption that sets the retry configuration.
func WithRetryConfig[IN, DEP any](config RetryConfig[IN, DEP]) ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig = config
	}
}

// ExecuteOperation executes an operation with the given input and dependencies and records a
// Report of the execution in the bundle's reporter. Every call executes the operation: two
// transfers with identical input are two transactions.
//
// Retry:
// Retry is disabled by default. When enabled, the operation is executed up to
// RetryPolicy.MaxAttempts times with exponential backoff while it fails with an error accepted
// by RetryPolicy.RetryIf. To cancel the retry early, return an error with NewUnrecoverableError.
// Cancelling the bundle context stops the retry with the context error.
//
// Input & Output:
// The input and output must be JSON serializable so that reports can be exported.
func ExecuteOperation[IN, OUT, DEP any](
	b Bundle,
	operation *Operation[IN, OUT, DEP],
	deps DEP,
	input IN,
	opts ...ExecuteOption[IN, DEP],
) (Report[IN, OUT], error) {
	if !IsSerializable(b.Logger, input) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s input: %w", operation.def.ID, ErrNotSerializable)
	}

	executeConfig := &ExecuteConfig[IN, DEP]{
		retryConfig: newDisabledRetryConfig[IN, DEP](),
	}
	for _, opt := range opts {
		opt(executeConfig)
	}

	var (
		output   OUT
		err      error
		attempts uint
	)

	if executeConfig.retryConfig.Enabled {
		var inputTemp = input

		retryOpts := executeConfig.retryConfig.Policy.options()
		retryOpts = append(retryOpts, retry.Context(b.GetContext()))
		retryOpts = append(retryOpts, retry.OnRetry(func(attempt uint, err error) {
			b.Logger.Infow("Operation failed. Retrying...",
				"operation", operation.def.ID, "attempt", attempt+1, "error", err)

			if executeConfig.retryConfig.InputHook != nil {
				inputTemp = executeConfig.retryConfig.InputHook(attempt, err, inputTemp, deps)
			}
		}))

		output, err = retry.DoWithData(
			func() (OUT, error) {
				attempts++
				return operation.execute(b, deps, inputTemp)
			},
			retryOpts...,
		)
	} else {
		attempts = 1
		output, err = operation.execute(b, deps, input)
	}

	if err == nil && !IsSerializable(b.Logger, output) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s output: %w", operation.def.ID, ErrNotSerializable)
	}

	report := NewReport(operation.def, input, output, err)
	report.Attempts = attempts
	if rerr := b.reporter.AddReport(genericReport(report)); rerr != nil {
		return Report[IN, OUT]{}, rerr
	}

	// The original error is returned so that callers can match it with errors.Is and errors.As.
	if err != nil {
		return report, err
	}

	return report, nil
}

// NewUnrecoverableError creates an error that indicates an unrecoverable error.
// If this error is returned inside an operation, the operation will no longer retry.
func NewUnrecoverableError(err error) error {
	return retry.Unrecoverable(err)
}

// IsSerializable reports whether v survives a JSON round trip.
func IsSerializable(lggr logger.Logger, v any) bool {
	if _, err := json.Marshal(v); err != nil {
		lggr.Errorw("Value is not serializable", "type", fmt.Sprintf("%T", v), "error", err)
		return false
	}

	return true
}
