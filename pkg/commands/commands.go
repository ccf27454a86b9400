// Package commands provides the cobra commands of the token distributor CLI.
//
// The root command is created with NewRootCommand:
//
//	root := commands.NewRootCommand(commands.Config{})
//	err := root.ExecuteContext(ctx)
//
// Every command loads the dotenv file, then the configuration, dials the chain and builds a
// session. Loading is injectable through Deps so that commands can be tested against a fake or
// simulated chain:
//
//	commands.NewRootCommand(commands.Config{
//	    Logger: lggr,
//	    Deps:   &commands.Deps{ChainLoader: myChainLoader},
//	})
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm/gas"
	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm/provider"
	"github.com/smartcontractkit/chainlink-token-distributor/datastore"
	"github.com/smartcontractkit/chainlink-token-distributor/engine/config"
	"github.com/smartcontractkit/chainlink-token-distributor/engine/session"
	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
)

// ConfigLoaderFunc loads the configuration from the file at path and the environment.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// ChainLoaderFunc connects to the chain described by cfg.
type ChainLoaderFunc func(ctx context.Context, cfg *config.Config, lggr logger.Logger) (evm.Chain, error)

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values use the production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// ChainLoader connects to the chain.
	// Default: an RPC chain provider signing with the configured deployer key
	ChainLoader ChainLoaderFunc
}

func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.ChainLoader == nil {
		d.ChainLoader = defaultChainLoader
	}
}

// Config configures the root command.
type Config struct {
	// Logger overrides the logger built from the log settings of the configuration.
	Logger logger.Logger
	// Deps overrides the production dependencies.
	Deps *Deps
}

func (c *Config) deps() {
	if c.Deps == nil {
		c.Deps = &Deps{}
	}
	c.Deps.applyDefaults()
}

// NewRootCommand creates the token-distributor command with all subcommands.
func NewRootCommand(cfg Config) *cobra.Command {
	cfg.deps()

	cmd := &cobra.Command{
		Use:   "token-distributor",
		Short: "Deploy an ERC20 token and distribute it to a list of recipients",
		Long: longDesc(`
			Deploys an ERC20 token contract on a single EVM chain and sends a fixed amount of it
			to every address of a recipient list, one transaction at a time.

			Settings are read from a YAML file and environment variables. A dotenv file is
			loaded first, and the address of a deployed token is written back to it.
		`),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigFile, "Configuration file, optional")
	cmd.PersistentFlags().String("env-file", datastore.DefaultEnvFile, "Dotenv file to load and to write the token address to")

	cmd.AddCommand(
		newDeployCmd(cfg),
		newDistributeCmd(cfg),
		newBalanceCmd(cfg),
	)

	return cmd
}

// environment is what every command needs once the configuration is loaded and the chain is
// dialed.
type environment struct {
	cfg     *config.Config
	lggr    logger.Logger
	chain   evm.Chain
	session *session.Session
	store   *datastore.EnvFileStore
}

// close releases the RPC connections.
func (e *environment) close() {
	if c, ok := e.chain.Client.(interface{ Close() }); ok {
		c.Close()
	}
	_ = e.lggr.Sync()
}

// loadEnvironment loads the dotenv file and the configuration, connects to the chain and
// starts a session on it. The checks run on the validated configuration before the chain is
// dialed.
func loadEnvironment(cmd *cobra.Command, cfg Config, checks ...func(*config.Config) error) (*environment, error) {
	envFile := mustString(cmd.Flags().GetString("env-file"))
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	c, err := cfg.Deps.ConfigLoader(mustString(cmd.Flags().GetString("config")))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("env-file") || c.EnvFile == "" {
		c.EnvFile = envFile
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	for _, check := range checks {
		if err = check(c); err != nil {
			return nil, err
		}
	}

	lggr := cfg.Logger
	if lggr == nil {
		if lggr, err = newLogger(c.Log); err != nil {
			return nil, err
		}
	}

	chain, err := cfg.Deps.ChainLoader(cmd.Context(), c, lggr)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}

	s, err := session.New(chain, gas.DefaultPolicy(), lggr)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:     c,
		lggr:    lggr,
		chain:   chain,
		session: s,
		store:   datastore.NewEnvFileStore(c.EnvFile, chain.ChainID.Uint64()),
	}, nil
}

func newLogger(c config.LogConfig) (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %w", config.ErrConfiguration, err)
	}

	return (&logger.Config{Level: level, Development: c.Development}).New()
}

func defaultChainLoader(ctx context.Context, cfg *config.Config, lggr logger.Logger) (evm.Chain, error) {
	return provider.NewRPCChainProvider(provider.RPCChainProviderConfig{
		DeployerTransactorGen: provider.TransactorFromRaw(cfg.Onchain.EVM.DeployerKey),
		ChainID:               cfg.ChainID(),
		RPCs:                  cfg.RPCs(),
		ConfirmFunctor: provider.ConfirmFuncGeth(cfg.Confirm.Timeout,
			provider.WithTickInterval(cfg.Confirm.TickInterval)),
		Logger: lggr,
	}).Initialize(ctx)
}

// mustString returns the string value, ignoring the error of a registered flag lookup.
func mustString(s string, _ error) string { return s }
