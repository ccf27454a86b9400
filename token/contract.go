package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// DeployedContract is a token contract address bound to the ABI of its artifact.
type DeployedContract struct {
	Address  common.Address
	Artifact *Artifact
}

// NewDeployedContract binds address to the artifact.
func NewDeployedContract(address common.Address, art *Artifact) *DeployedContract {
	return &DeployedContract{Address: address, Artifact: art}
}

// TransferCallData returns the calldata of transfer(recipient, amount).
func (c *DeployedContract) TransferCallData(recipient common.Address, amount *big.Int) ([]byte, error) {
	data, err := c.Artifact.ABI.Pack("transfer", recipient, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: pack transfer: %w", ErrArtifactInvalid, err)
	}

	return data, nil
}

// Decimals reads decimals() from the contract.
func (c *DeployedContract) Decimals(ctx context.Context, caller ethereum.ContractCaller) (uint8, error) {
	data, err := c.Artifact.ABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("%w: pack decimals: %w", ErrArtifactInvalid, err)
	}

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &c.Address, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to call decimals() on %s: %w", c.Address.Hex(), err)
	}

	vals, err := c.Artifact.ABI.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack decimals() of %s: %w", c.Address.Hex(), err)
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("decimals() of %s returned %d values", c.Address.Hex(), len(vals))
	}

	switch v := vals[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals() of %s returned %s", c.Address.Hex(), v)
		}

		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("decimals() of %s returned unexpected type %T", c.Address.Hex(), v)
	}
}
