// Package tokentest provides token artifacts for tests.
package tokentest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-token-distributor/token"
)

// ABI is the ABI of an ERC20 token whose constructor takes (name, symbol, decimals, totalSupply).
const ABI = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[
    {"name":"name_","type":"string","internalType":"string"},
    {"name":"symbol_","type":"string","internalType":"string"},
    {"name":"decimals_","type":"uint8","internalType":"uint8"},
    {"name":"totalSupply_","type":"uint256","internalType":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint8","internalType":"uint8"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
    "inputs":[{"name":"account","type":"address","internalType":"address"}],
    "outputs":[{"name":"","type":"uint256","internalType":"uint256"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
    "inputs":[{"name":"to","type":"address","internalType":"address"},{"name":"value","type":"uint256","internalType":"uint256"}],
    "outputs":[{"name":"","type":"bool","internalType":"bool"}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true,"internalType":"address"},
    {"name":"to","type":"address","indexed":true,"internalType":"address"},
    {"name":"value","type":"uint256","indexed":false,"internalType":"uint256"}]}
]`

// Bytecode is creation code for a stand-in token: the deployed code answers every call with the
// 32 byte word 18, so decimals() returns 18 and transfer() succeeds and returns true. Constructor
// arguments appended to it are ignored.
const Bytecode = "0x600a600c600039600a6000f3601260005260206000f3"

// Decimals is what decimals() of the stand-in token returns.
const Decimals uint8 = 18

// ArtifactJSON returns a Hardhat style artifact with the bytecode as a plain string.
func ArtifactJSON() string {
	return `{"contractName":"CustomToken","abi":` + ABI + `,"bytecode":"` + Bytecode + `"}`
}

// FoundryArtifactJSON returns a Foundry style artifact with the bytecode under "object".
func FoundryArtifactJSON() string {
	return `{"abi":` + ABI + `,"bytecode":{"object":"` + Bytecode + `","sourceMap":""}}`
}

// Artifact returns the parsed stand-in token artifact.
func Artifact(t *testing.T) *token.Artifact {
	t.Helper()

	art, err := token.ParseArtifact([]byte(ArtifactJSON()))
	require.NoError(t, err)

	return art
}

// WriteArtifact writes the artifact to a file in a temporary directory and returns its path.
func WriteArtifact(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "CustomToken.json")
	require.NoError(t, os.WriteFile(path, []byte(ArtifactJSON()), 0o600))

	return path
}
