package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-token-distributor/engine/deploy"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

var (
	deployLong = longDesc(`
		Deploy the token contract and record its address as CONTRACT_ADDRESS in the dotenv file.

		The whole supply is minted to the wallet. The artifact must be a Hardhat or Foundry
		JSON file holding the ABI and the creation bytecode.
	`)
	deployExample = examples(`
		# Deploy "Custom Token" with 18 decimals and a supply of one million
		token-distributor deploy --name "Custom Token" --symbol CTK --supply 1000000

		# Deploy with an artifact built by Foundry
		token-distributor deploy --name Test --symbol TST --decimals 6 --supply 500 --artifact out/CustomToken.sol/CustomToken.json
	`)
)

func newDeployCmd(cfg Config) *cobra.Command {
	var (
		params       token.DeployParams
		artifactPath string
		gasLimit     uint64
	)

	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   "Deploy the token contract",
		Long:    deployLong,
		Example: deployExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd, cfg)
			if err != nil {
				return err
			}
			defer env.close()

			if artifactPath == "" {
				artifactPath = env.cfg.Artifact.Path
			}

			out, err := deploy.NewCoordinator(env.session, env.store, deploy.WithGasLimit(gasLimit)).
				Deploy(cmd.Context(), artifactPath, params)
			if out != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Token deployed at %s (tx %s, block %d)\n",
					out.Address.Hex(), out.TxHash.Hex(), out.BlockNumber)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Address saved to %s\n", env.store.Path())

			return nil
		},
	}

	cmd.Flags().StringVar(&params.Name, "name", "", "Token name (required)")
	cmd.Flags().StringVar(&params.Symbol, "symbol", "", "Token symbol (required)")
	cmd.Flags().StringVar(&params.Decimals, "decimals", "18", "Token decimals")
	cmd.Flags().StringVar(&params.TotalSupply, "supply", "", "Total supply in whole tokens (required)")
	cmd.Flags().StringVar(&artifactPath, "artifact", "", "Compiled contract artifact, defaults to the configured path")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", deploy.DefaultGasLimit, "Gas limit of the deployment transaction")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("supply")

	return cmd
}
