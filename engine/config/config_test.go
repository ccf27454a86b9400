package config

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm"
	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

var (
	// fileCfg is the config that is loaded from the testdata/config.yml file.
	fileCfg = &Config{
		Onchain: OnchainConfig{
			EVM: EVMConfig{
				DeployerKey:     "0xabc",
				RPCURL:          "http://localhost:8545",
				BackupRPCURLs:   []string{"http://localhost:8546", "http://localhost:8547"},
				ChainID:         10218,
				ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			},
		},
		Artifact: ArtifactConfig{Path: "build/CustomToken.json"},
		Distribution: DistributionConfig{
			RecipientsFile: "recipients.txt",
			Amount:         "1.5",
			InterTxDelay:   time.Minute,
			MinBalance:     "0.5",
			MaxAttempts:    3,
			RetryDelay:     500 * time.Millisecond,
		},
		Confirm: ConfirmConfig{
			Timeout:      2 * time.Minute,
			TickInterval: time.Second,
		},
		Log:     LogConfig{Level: "debug", Development: true},
		EnvFile: "deploy.env",
	}

	// defaultCfg is the config produced when neither a file nor the environment sets anything.
	defaultCfg = &Config{
		Onchain: OnchainConfig{
			EVM: EVMConfig{RPCURL: DefaultRPCURL},
		},
		Artifact: ArtifactConfig{Path: token.DefaultArtifactPath},
		Distribution: DistributionConfig{
			RecipientsFile: DefaultRecipientsFile,
			InterTxDelay:   7 * time.Minute,
			MinBalance:     "0.01",
			MaxAttempts:    5,
			RetryDelay:     2 * time.Second,
		},
		Confirm: ConfirmConfig{
			Timeout:      60 * time.Second,
			TickInterval: 5 * time.Second,
		},
		Log:     LogConfig{Level: "info"},
		EnvFile: ".env",
	}

	// envVars is the environment variables that used to set the config.
	envVars = map[string]string{
		"ONCHAIN_EVM_DEPLOYER_KEY":     "0x123",
		"ONCHAIN_EVM_RPC_URL":          "http://rpc:8545",
		"ONCHAIN_EVM_BACKUP_RPC_URLS":  "http://rpc:8546,http://rpc:8547",
		"ONCHAIN_EVM_CHAIN_ID":         "1337",
		"ONCHAIN_EVM_CONTRACT_ADDRESS": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		"DISTRIBUTION_AMOUNT":          "100",
		"DISTRIBUTION_INTER_TX_DELAY":  "10s",
		"CONFIRM_TIMEOUT":              "30s",
		"LOG_LEVEL":                    "warn",
	}

	// legacyEnvVars are the variable names read by the original distribution scripts.
	legacyEnvVars = map[string]string{
		"MAIN_PRIVATE_KEY": "0x123",
		"RPC_URL":          "http://rpc:8545",
		"CHAIN_ID":         "1337",
		"CONTRACT_ADDRESS": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		// These values do not have a legacy equivalent
		"ONCHAIN_EVM_BACKUP_RPC_URLS": "http://rpc:8546,http://rpc:8547",
		"DISTRIBUTION_AMOUNT":         "100",
		"DISTRIBUTION_INTER_TX_DELAY": "10s",
		"CONFIRM_TIMEOUT":             "30s",
		"LOG_LEVEL":                   "warn",
	}
)

// envCfg returns base with the values of envVars applied.
func envCfg(base *Config) *Config {
	cfg := *base
	cfg.Onchain.EVM = EVMConfig{
		DeployerKey:     "0x123",
		RPCURL:          "http://rpc:8545",
		BackupRPCURLs:   []string{"http://rpc:8546", "http://rpc:8547"},
		ChainID:         1337,
		ContractAddress: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
	}
	cfg.Distribution.Amount = "100"
	cfg.Distribution.InterTxDelay = 10 * time.Second
	cfg.Confirm.Timeout = 30 * time.Second
	cfg.Log.Level = "warn"

	return &cfg
}

func Test_Load(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	tests := []struct {
		name       string
		beforeFunc func(t *testing.T)
		givePath   string
		want       *Config
		wantErr    string
	}{
		{
			name:     "load from file",
			givePath: "./testdata/config.yml",
			want:     fileCfg,
		},
		{
			name:     "load from empty file applies defaults",
			givePath: "./testdata/empty.yml",
			want:     defaultCfg,
		},
		{
			name: "override with env",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, envVars)
			},
			givePath: "./testdata/config.yml",
			want:     envCfg(fileCfg),
		},
		{
			name: "fallback to env when file not found",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, envVars)
			},
			givePath: "./testdata/invalid.yml",
			want:     envCfg(defaultCfg),
		},
	}

	for _, tt := range tests { //nolint:paralleltest // see comment in setupEnvVars
		t.Run(tt.name, func(t *testing.T) {
			if tt.beforeFunc != nil {
				tt.beforeFunc(t)
			}

			got, err := Load(tt.givePath)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_LoadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		givePath string
		want     *Config
		wantErr  string
	}{
		{
			name:     "load from file",
			givePath: "./testdata/config.yml",
			want:     fileCfg,
		},
		{
			name:     "load from file with invalid path",
			givePath: "./testdata/invalid.yml",
			wantErr:  "no such file or directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := LoadFile(tt.givePath)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_LoadEnv(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	setupEnvVars(t, envVars)

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, envCfg(defaultCfg), got)
}

func Test_LoadEnv_Legacy(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	setupEnvVars(t, legacyEnvVars)

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, envCfg(defaultCfg), got)
}

func Test_YAML_Marshal_Unmarshal(t *testing.T) {
	t.Parallel()

	yamlCfg, err := os.ReadFile("./testdata/config.yml")
	require.NoError(t, err)

	var cfg Config
	err = yaml.Unmarshal(yamlCfg, &cfg)
	require.NoError(t, err)

	assert.Equal(t, *fileCfg, cfg)

	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	assert.YAMLEq(t, string(yamlCfg), string(b))
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing deployer key",
			mutate:  func(c *Config) { c.Onchain.EVM.DeployerKey = "" },
			wantErr: "deployer key is required",
		},
		{
			name:    "missing rpc url",
			mutate:  func(c *Config) { c.Onchain.EVM.RPCURL = "" },
			wantErr: "rpc url is required",
		},
		{
			name:    "malformed contract address",
			mutate:  func(c *Config) { c.Onchain.EVM.ContractAddress = "0x1234" },
			wantErr: "is not an address",
		},
		{
			name:    "zero confirm timeout",
			mutate:  func(c *Config) { c.Confirm.Timeout = 0 },
			wantErr: "must be positive",
		},
		{
			name:    "negative inter tx delay",
			mutate:  func(c *Config) { c.Distribution.InterTxDelay = -time.Second },
			wantErr: "must not be negative",
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Distribution.MaxAttempts = 0 },
			wantErr: "max attempts must be at least 1",
		},
		{
			name:    "malformed min balance",
			mutate:  func(c *Config) { c.Distribution.MinBalance = "lots" },
			wantErr: "min balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := *fileCfg
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrConfiguration)
				require.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
		})
	}
}

func Test_Config_Helpers(t *testing.T) {
	t.Parallel()

	cfg := *fileCfg

	assert.Equal(t, []evm.RPC{
		{Name: "primary", URL: "http://localhost:8545"},
		{Name: "backup-1", URL: "http://localhost:8546"},
		{Name: "backup-2", URL: "http://localhost:8547"},
	}, cfg.RPCs())
	assert.Equal(t, big.NewInt(10218), cfg.ChainID())

	wei, err := cfg.MinBalanceWei()
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", wei.String())

	cfg.Onchain.EVM.ChainID = 0
	assert.Nil(t, cfg.ChainID())
}

// setupEnvVars sets up the environment variables for the test.
//
// CAUTION: Because this function uses t.Setenv which affects the entire process, tests which call
// this function cannot be run in parallel.
func setupEnvVars(t *testing.T, envVars map[string]string) {
	t.Helper()

	for key, value := range envVars {
		t.Setenv(key, value)
	}
}
