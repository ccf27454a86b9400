/*
Package operations runs the chain side effects of the distributor in a structured and traceable
manner.

# Operations

An Operation wraps a handler that performs at most one side effect, e.g. submitting one
transaction and waiting for its receipt. Operations are versioned with a semver Definition.

ExecuteOperation runs an operation, optionally retrying it with exponential backoff under a
RetryPolicy, and records a Report of the execution (input, output, error, attempts) in the
Reporter of the Bundle. Executions are never skipped: a transfer executed twice with the same
input submits two transactions.

# Basic Usage

	op := operations.NewOperation("token-transfer", semver.MustParse("1.0.0"),
		"Transfers tokens to a recipient", handler)

	b := operations.NewBundle(ctx.Context, lggr, operations.NewMemoryReporter())
	report, err := operations.ExecuteOperation(b, op, deps, input,
		operations.WithRetryConfig(operations.RetryConfig[Input, Deps]{
			Enabled: true,
			Policy:  operations.RetryPolicy{MaxAttempts: 5, Delay: time.Second, RetryIf: evm.IsUnderpriced},
		}),
	)
*/
package operations
