package provider

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	chain_selectors "github.com/smartcontractkit/chain-selectors"
)

// Defines a general test EVM address
var (
	testAddr1 = common.HexToAddress("0xc1d6fEcd5D09Ad67cF5E0FC9633D89759DD84271")
)

// Defines standard variables for a test chain.
var (
	testChainID    = chain_selectors.TEST_1000.EvmChainID // Defines a standard test EVM chain ID
	testChainIDBig = new(big.Int).SetUint64(testChainID)  // Defines the testChainID in *big.Int format
)
