// Package config loads the distributor configuration from a YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

// ErrConfiguration is returned when a required setting is missing or malformed.
var ErrConfiguration = errors.New("invalid configuration")

const (
	// DefaultConfigFile is the configuration file read when no path is given.
	DefaultConfigFile = "distributor.yml"
	// DefaultRPCURL is the public endpoint used when no RPC is configured.
	DefaultRPCURL = "https://tea-sepolia.g.alchemy.com/public"
	// DefaultRecipientsFile is the recipient list read by the distribution.
	DefaultRecipientsFile = "address_KYC.txt"
)

// EVMConfig is the configuration of the chain and the wallet.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type EVMConfig struct {
	DeployerKey     string   `mapstructure:"deployer_key" yaml:"deployer_key"`         // Secret: The private key of the distributor wallet.
	RPCURL          string   `mapstructure:"rpc_url" yaml:"rpc_url"`                   // The preferred RPC endpoint.
	BackupRPCURLs   []string `mapstructure:"backup_rpc_urls" yaml:"backup_rpc_urls"`   // Endpoints used when the preferred one is unreachable.
	ChainID         uint64   `mapstructure:"chain_id" yaml:"chain_id"`                 // Expected chain id. Zero adopts the chain id served by the RPC.
	ContractAddress string   `mapstructure:"contract_address" yaml:"contract_address"` // The deployed token, set after a deployment.
}

// OnchainConfig wraps the configuration for the onchain components.
type OnchainConfig struct {
	EVM EVMConfig `mapstructure:"evm" yaml:"evm"`
}

// ArtifactConfig locates the compiled token contract.
type ArtifactConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DistributionConfig holds the tunables of a distribution run.
type DistributionConfig struct {
	RecipientsFile string        `mapstructure:"recipients_file" yaml:"recipients_file"`
	Amount         string        `mapstructure:"amount" yaml:"amount"`                 // Whole tokens sent to every recipient.
	InterTxDelay   time.Duration `mapstructure:"inter_tx_delay" yaml:"inter_tx_delay"` // Wait between two recipients.
	MinBalance     string        `mapstructure:"min_balance" yaml:"min_balance"`       // Native balance, in ether, required to start.
	MaxAttempts    uint          `mapstructure:"max_attempts" yaml:"max_attempts"`     // Attempts of a transfer rejected as underpriced.
	RetryDelay     time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`       // Initial backoff of an underpriced transfer.
}

// ConfirmConfig controls the confirmation polling of submitted transactions.
type ConfirmConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Config wraps the entire configuration of the distributor.
type Config struct {
	Onchain      OnchainConfig      `mapstructure:"onchain" yaml:"onchain"`
	Artifact     ArtifactConfig     `mapstructure:"artifact" yaml:"artifact"`
	Distribution DistributionConfig `mapstructure:"distribution" yaml:"distribution"`
	Confirm      ConfirmConfig      `mapstructure:"confirm" yaml:"confirm"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	EnvFile      string             `mapstructure:"env_file" yaml:"env_file"` // The dotenv file the deployed address is written to.
}

// defaults are applied to every key that neither the file nor the environment sets.
var defaults = map[string]any{
	"onchain.evm.rpc_url":          DefaultRPCURL,
	"artifact.path":                token.DefaultArtifactPath,
	"distribution.recipients_file": DefaultRecipientsFile,
	"distribution.inter_tx_delay":  7 * time.Minute,
	"distribution.min_balance":     "0.01",
	"distribution.max_attempts":    5,
	"distribution.retry_delay":     2 * time.Second,
	"confirm.timeout":              60 * time.Second,
	"confirm.tick_interval":        5 * time.Second,
	"log.level":                    "info",
	"env_file":                     ".env",
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we fallback to using
	// environment variables
	if filePath != "" {
		v.SetConfigFile(filePath)
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	return Load("")
}

// LoadFile loads the config from a file. Environment variables are ignored.
func LoadFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	return v
}

var (
	// envBindings defines how environment variables map to configuration keys used by Viper.
	//
	// The first element in the list is the preferred environment variable name, and the second
	// (if present) is the name read by the original distribution scripts, which keeps existing
	// .env files working.
	//
	// When loading, Viper will check each listed environment variable in order and use the first one
	// that is set.
	envBindings = map[string][]string{
		"onchain.evm.deployer_key":     {"ONCHAIN_EVM_DEPLOYER_KEY", "MAIN_PRIVATE_KEY"},
		"onchain.evm.rpc_url":          {"ONCHAIN_EVM_RPC_URL", "RPC_URL"},
		"onchain.evm.backup_rpc_urls":  {"ONCHAIN_EVM_BACKUP_RPC_URLS"},
		"onchain.evm.chain_id":         {"ONCHAIN_EVM_CHAIN_ID", "CHAIN_ID"},
		"onchain.evm.contract_address": {"ONCHAIN_EVM_CONTRACT_ADDRESS", "CONTRACT_ADDRESS"},
		"artifact.path":                {"ARTIFACT_PATH"},
		"distribution.recipients_file": {"DISTRIBUTION_RECIPIENTS_FILE"},
		"distribution.amount":          {"DISTRIBUTION_AMOUNT"},
		"distribution.inter_tx_delay":  {"DISTRIBUTION_INTER_TX_DELAY"},
		"distribution.min_balance":     {"DISTRIBUTION_MIN_BALANCE"},
		"distribution.max_attempts":    {"DISTRIBUTION_MAX_ATTEMPTS"},
		"distribution.retry_delay":     {"DISTRIBUTION_RETRY_DELAY"},
		"confirm.timeout":              {"CONFIRM_TIMEOUT"},
		"confirm.tick_interval":        {"CONFIRM_TICK_INTERVAL"},
		"log.level":                    {"LOG_LEVEL"},
		"env_file":                     {"ENV_FILE"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the env key to the start of the arguments
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the settings shared by every command. It returns an error wrapping
// ErrConfiguration naming the first problem found.
func (c *Config) Validate() error {
	if c.Onchain.EVM.DeployerKey == "" {
		return fmt.Errorf("%w: deployer key is required (set MAIN_PRIVATE_KEY)", ErrConfiguration)
	}
	if c.Onchain.EVM.RPCURL == "" {
		return fmt.Errorf("%w: rpc url is required (set RPC_URL)", ErrConfiguration)
	}
	if addr := c.Onchain.EVM.ContractAddress; addr != "" && !common.IsHexAddress(addr) {
		return fmt.Errorf("%w: contract address %q is not an address", ErrConfiguration, addr)
	}
	if c.Confirm.Timeout <= 0 || c.Confirm.TickInterval <= 0 {
		return fmt.Errorf("%w: confirm timeout and tick interval must be positive", ErrConfiguration)
	}
	if c.Distribution.InterTxDelay < 0 {
		return fmt.Errorf("%w: inter tx delay must not be negative", ErrConfiguration)
	}
	if c.Distribution.MaxAttempts == 0 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrConfiguration)
	}
	if _, err := c.MinBalanceWei(); err != nil {
		return err
	}

	return nil
}

// RPCs returns the configured endpoints, the preferred one first.
func (c *Config) RPCs() []evm.RPC {
	rpcs := []evm.RPC{{Name: "primary", URL: c.Onchain.EVM.RPCURL}}
	for i, url := range c.Onchain.EVM.BackupRPCURLs {
		rpcs = append(rpcs, evm.RPC{Name: fmt.Sprintf("backup-%d", i+1), URL: url})
	}

	return rpcs
}

// ChainID returns the expected chain id, or nil when it should be discovered from the RPC.
func (c *Config) ChainID() *big.Int {
	if c.Onchain.EVM.ChainID == 0 {
		return nil
	}

	return new(big.Int).SetUint64(c.Onchain.EVM.ChainID)
}

// MinBalanceWei returns the minimum native balance in wei.
func (c *Config) MinBalanceWei() (*big.Int, error) {
	wei, err := token.ParseUnits(c.Distribution.MinBalance, 18)
	if err != nil {
		return nil, fmt.Errorf("%w: min balance: %w", ErrConfiguration, err)
	}

	return wei, nil
}
