// Package gas computes the EIP-1559 fee fields for every transaction the distributor sends.
//
// The policy is fixed: the max fee is a multiple of the network's suggested gas price and the
// priority fee is a constant. There is no fee oracle beyond the node's own suggestion.
package gas

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

const (
	// DefaultMultiplier is applied to the suggested gas price to obtain the max fee per gas.
	DefaultMultiplier = 2
)

// DefaultPriorityFee is the constant max priority fee per gas, 9 gwei.
var DefaultPriorityFee = new(big.Int).Mul(big.NewInt(9), big.NewInt(params.GWei))

// Fees are the fee fields of a dynamic fee transaction.
type Fees struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (f Fees) String() string {
	return fmt.Sprintf("maxFee=%s maxPriorityFee=%s", f.MaxFeePerGas, f.MaxPriorityFeePerGas)
}

// PriceSource is the part of a chain client the policy reads from.
type PriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Policy turns a gas price into Fees.
type Policy struct {
	Multiplier  int64
	PriorityFee *big.Int
	// MinGasPrice floors the network price in Suggest. A zero or nil value disables the floor.
	MinGasPrice *big.Int
}

// DefaultPolicy doubles the network price, tips 9 gwei and floors the network price at half the
// tip so the max fee never drops below the priority fee.
func DefaultPolicy() Policy {
	return Policy{
		Multiplier:  DefaultMultiplier,
		PriorityFee: new(big.Int).Set(DefaultPriorityFee),
		MinGasPrice: new(big.Int).Div(DefaultPriorityFee, big.NewInt(DefaultMultiplier)),
	}
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	if p.Multiplier <= 0 {
		return errors.New("gas multiplier must be positive")
	}
	if p.PriorityFee == nil || p.PriorityFee.Sign() < 0 {
		return errors.New("priority fee must be set and not negative")
	}
	if p.MinGasPrice != nil && p.MinGasPrice.Sign() < 0 {
		return errors.New("min gas price must not be negative")
	}

	return nil
}

// Compute returns the fees for the given gas price. It does not apply the floor.
func (p Policy) Compute(price *big.Int) Fees {
	maxFee := new(big.Int).Mul(price, big.NewInt(p.Multiplier))

	return Fees{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: new(big.Int).Set(p.PriorityFee),
	}
}

// Floor returns price raised to MinGasPrice when it is lower.
func (p Policy) Floor(price *big.Int) *big.Int {
	if p.MinGasPrice != nil && price.Cmp(p.MinGasPrice) < 0 {
		return new(big.Int).Set(p.MinGasPrice)
	}

	return price
}

// Suggest reads the current gas price from the network, floors it and computes the fees.
func (p Policy) Suggest(ctx context.Context, src PriceSource) (Fees, error) {
	price, err := src.SuggestGasPrice(ctx)
	if err != nil {
		return Fees{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	return p.Compute(p.Floor(price)), nil
}
