package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

var balanceLong = longDesc(`
	Print the wallet address and its native balance, and whether the balance is enough to
	start a distribution.
`)

func newBalanceCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet balance",
		Long:  balanceLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd, cfg)
			if err != nil {
				return err
			}
			defer env.close()

			from := env.session.From()
			balance, err := env.chain.Client.BalanceAt(cmd.Context(), from, nil)
			if err != nil {
				return fmt.Errorf("failed to get balance of %s: %w", from.Hex(), evm.ClassifyError(err))
			}
			minBalance, err := env.cfg.MinBalanceWei()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chain:   %s\n", env.chain)
			fmt.Fprintf(out, "Address: %s\n", from.Hex())
			fmt.Fprintf(out, "Balance: %s\n", token.FormatUnits(balance, 18))
			if balance.Cmp(minBalance) < 0 {
				fmt.Fprintf(out, "Below the %s required to distribute\n", token.FormatUnits(minBalance, 18))
			}

			return nil
		},
	}
}
