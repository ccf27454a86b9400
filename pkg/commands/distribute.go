package commands

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-token-distributor/datastore"
	"github.com/smartcontractkit/chainlink-token-distributor/engine/config"
	"github.com/smartcontractkit/chainlink-token-distributor/engine/distribute"
	"github.com/smartcontractkit/chainlink-token-distributor/engine/session"
	"github.com/smartcontractkit/chainlink-token-distributor/operations"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

// ErrTransfersFailed is returned by the distribute command when at least one recipient was not
// paid. The report lists them.
var ErrTransfersFailed = errors.New("some transfers failed")

var (
	distributeLong = longDesc(`
		Send the same amount of the deployed token to every address of the recipient file.

		Transfers are sent one at a time and spaced by the configured delay. A failed transfer
		does not stop the run; failures are listed at the end and in the report file. Nothing
		is remembered between runs: running again pays every recipient again.
	`)
	distributeExample = examples(`
		# Send 10 tokens to every address of address_KYC.txt
		token-distributor distribute --amount 10

		# Use another list, no delay, and keep a JSON report
		token-distributor distribute --amount 2.5 --recipients airdrop.txt --delay 0s --report run.json
	`)
)

func newDistributeCmd(cfg Config) *cobra.Command {
	var (
		amount     string
		recipients string
		contract   string
		reportPath string
	)

	cmd := &cobra.Command{
		Use:     "distribute",
		Short:   "Distribute the token to the recipient list",
		Long:    distributeLong,
		Example: distributeExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd, cfg, func(c *config.Config) error {
				if amount == "" {
					amount = c.Distribution.Amount
				}
				if amount == "" {
					return fmt.Errorf("%w: amount is required", config.ErrConfiguration)
				}
				if err := token.ValidateAmount(amount); err != nil {
					return fmt.Errorf("amount: %w", err)
				}

				if recipients == "" {
					recipients = c.Distribution.RecipientsFile
				}
				if contract == "" {
					contract = c.Onchain.EVM.ContractAddress
				}
				if contract == "" {
					return fmt.Errorf("%w: set %s or pass --contract", session.ErrNotDeployed, datastore.ContractAddressKey)
				}
				if !common.IsHexAddress(contract) {
					return fmt.Errorf("%w: contract address %q is not an address", config.ErrConfiguration, contract)
				}

				return nil
			})
			if err != nil {
				return err
			}
			defer env.close()

			distCfg, err := distributionConfig(cmd, env.cfg)
			if err != nil {
				return err
			}

			art, err := token.LoadArtifact(env.cfg.Artifact.Path)
			if err != nil {
				return err
			}
			if _, err = env.session.Rehydrate(cmd.Context(), common.HexToAddress(contract), art); err != nil {
				return err
			}

			list, err := distribute.ReadRecipients(recipients, env.lggr)
			if err != nil {
				return err
			}

			coord, err := distribute.NewCoordinator(env.session, distCfg)
			if err != nil {
				return err
			}

			report, runErr := coord.Run(cmd.Context(), list, amount)
			if report == nil {
				return runErr
			}

			if reportPath != "" {
				if err := report.WriteJSON(reportPath); err != nil {
					return errors.Join(runErr, err)
				}
			}
			printReport(cmd, report)

			if runErr != nil {
				return runErr
			}
			if report.Failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrTransfersFailed, report.Failed, report.Attempted)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Whole tokens sent to every recipient, defaults to the configured amount")
	cmd.Flags().StringVarP(&recipients, "recipients", "r", "", "Recipient file, one address per line")
	cmd.Flags().StringVar(&contract, "contract", "", "Token address, defaults to CONTRACT_ADDRESS")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the run report as JSON to this file")
	cmd.Flags().Duration("delay", distribute.DefaultInterTxDelay, "Wait between two recipients, defaults to the configured delay")

	return cmd
}

// distributionConfig returns the run tunables of c, the --delay flag taking precedence.
func distributionConfig(cmd *cobra.Command, c *config.Config) (distribute.Config, error) {
	minBalance, err := c.MinBalanceWei()
	if err != nil {
		return distribute.Config{}, err
	}

	delay := c.Distribution.InterTxDelay
	if cmd.Flags().Changed("delay") {
		if delay, err = cmd.Flags().GetDuration("delay"); err != nil {
			return distribute.Config{}, err
		}
	}

	return distribute.Config{
		InterTxDelay: delay,
		MinBalance:   minBalance,
		Retry: operations.RetryPolicy{
			MaxAttempts: c.Distribution.MaxAttempts,
			Delay:       c.Distribution.RetryDelay,
			MaxDelay:    distribute.DefaultMaxRetryDelay,
		},
	}, nil
}

func printReport(cmd *cobra.Command, report *distribute.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d attempted, %d succeeded, %d failed\n",
		report.RunID, report.Attempted, report.Succeeded, report.Failed)

	for _, res := range report.FailedResults() {
		hash := "-"
		if res.TxHash != nil {
			hash = res.TxHash.Hex()
		}
		fmt.Fprintf(out, "  %s\ttx %s\t%s\n", res.Recipient.Hex(), hash, res.Error)
	}
}
