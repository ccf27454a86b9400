package token

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/smartcontractkit/chainlink-token-distributor/chain/evm/gas"
)

// DeployParams are the user supplied constructor parameters of the token.
type DeployParams struct {
	Name   string
	Symbol string
	// Decimals and TotalSupply are numeric strings, validated before anything is signed.
	Decimals    string
	TotalSupply string
}

// Validate checks the numeric parameters without signing anything.
func (p DeployParams) Validate() error {
	decimals, err := ParseDecimals(p.Decimals)
	if err != nil {
		return err
	}
	if _, err := ParseUnits(p.TotalSupply, decimals); err != nil {
		return fmt.Errorf("total supply: %w", err)
	}

	return nil
}

// Attempt is a signed transaction ready to be submitted, with the parameters it was built from.
type Attempt struct {
	Nonce                uint64
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Tx                   *types.Transaction
}

// Hash returns the hash of the signed transaction.
func (a *Attempt) Hash() common.Hash {
	return a.Tx.Hash()
}

// Signer builds and signs the dynamic fee transactions of the distributor wallet. It never submits
// them.
type Signer struct {
	opts    *bind.TransactOpts
	chainID *big.Int
}

// NewSigner returns a Signer for the wallet behind opts on chainID.
func NewSigner(opts *bind.TransactOpts, chainID *big.Int) (*Signer, error) {
	if opts == nil || opts.Signer == nil {
		return nil, errors.New("transact opts with a signer are required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("a positive chain id is required")
	}

	return &Signer{opts: opts, chainID: new(big.Int).Set(chainID)}, nil
}

// From returns the wallet address.
func (s *Signer) From() common.Address {
	return s.opts.From
}

// BuildDeploymentTx validates params, computes the total supply in the smallest unit and signs a
// contract creation transaction of the artifact. It also returns the address the contract will be
// deployed at.
func (s *Signer) BuildDeploymentTx(
	art *Artifact, params DeployParams, nonce uint64, fees gas.Fees, gasLimit uint64,
) (*Attempt, common.Address, error) {
	if art == nil {
		return nil, common.Address{}, fmt.Errorf("%w: artifact is required", ErrArtifactInvalid)
	}

	decimals, err := ParseDecimals(params.Decimals)
	if err != nil {
		return nil, common.Address{}, err
	}
	supply, err := ParseUnits(params.TotalSupply, decimals)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("total supply: %w", err)
	}

	args, err := constructorArgs(art.ABI.Constructor, params.Name, params.Symbol, decimals, supply)
	if err != nil {
		return nil, common.Address{}, err
	}
	packed, err := art.ABI.Pack("", args...)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: pack constructor: %w", ErrArtifactInvalid, err)
	}

	data := make([]byte, 0, len(art.Bytecode)+len(packed))
	data = append(data, art.Bytecode...)
	data = append(data, packed...)

	attempt, err := s.sign(nil, data, nonce, fees, gasLimit)
	if err != nil {
		return nil, common.Address{}, err
	}

	return attempt, crypto.CreateAddress(s.opts.From, nonce), nil
}

// BuildTransferTx signs a transfer(recipient, amount) call on contract.
func (s *Signer) BuildTransferTx(
	contract *DeployedContract, recipient common.Address, amount *big.Int, nonce uint64, fees gas.Fees, gasLimit uint64,
) (*Attempt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be greater than zero", ErrValidation)
	}

	data, err := contract.TransferCallData(recipient, amount)
	if err != nil {
		return nil, err
	}

	return s.sign(&contract.Address, data, nonce, fees, gasLimit)
}

func (s *Signer) sign(to *common.Address, data []byte, nonce uint64, fees gas.Fees, gasLimit uint64) (*Attempt, error) {
	if fees.MaxFeePerGas == nil || fees.MaxPriorityFeePerGas == nil {
		return nil, fmt.Errorf("%w: fees are required", ErrValidation)
	}
	if fees.MaxPriorityFeePerGas.Cmp(fees.MaxFeePerGas) > 0 {
		return nil, fmt.Errorf("%w: priority fee %s exceeds max fee %s", ErrValidation, fees.MaxPriorityFeePerGas, fees.MaxFeePerGas)
	}
	if gasLimit == 0 {
		return nil, fmt.Errorf("%w: gas limit must be greater than zero", ErrValidation)
	}

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       gasLimit,
		To:        to,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signed, err := s.opts.Signer(s.opts.From, unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}

	return &Attempt{
		Nonce:                nonce,
		GasLimit:             gasLimit,
		MaxFeePerGas:         fees.MaxFeePerGas,
		MaxPriorityFeePerGas: fees.MaxPriorityFeePerGas,
		Tx:                   signed,
	}, nil
}

// constructorArgs orders the token parameters as (name, symbol, decimals, supply) and converts
// the integers to the Go types the constructor inputs expect.
func constructorArgs(ctor abi.Method, name, symbol string, decimals uint8, supply *big.Int) ([]any, error) {
	if len(ctor.Inputs) != 4 {
		return nil, fmt.Errorf("%w: constructor takes %d inputs, want (name, symbol, decimals, totalSupply)",
			ErrArtifactInvalid, len(ctor.Inputs))
	}

	dec, err := coerceInt(ctor.Inputs[2].Type, new(big.Int).SetUint64(uint64(decimals)))
	if err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}
	sup, err := coerceInt(ctor.Inputs[3].Type, supply)
	if err != nil {
		return nil, fmt.Errorf("total supply: %w", err)
	}

	return []any{name, symbol, dec, sup}, nil
}

// coerceInt converts v to the Go type geth's ABI packer expects for typ: a sized integer up to 64
// bits, *big.Int otherwise.
func coerceInt(typ abi.Type, v *big.Int) (any, error) {
	if typ.T != abi.UintTy && typ.T != abi.IntTy {
		return nil, fmt.Errorf("%w: expected an integer input, got %s", ErrArtifactInvalid, typ.String())
	}
	if v.BitLen() > typ.Size || (typ.T == abi.IntTy && v.BitLen() >= typ.Size) {
		return nil, fmt.Errorf("%w: %s does not fit in %s", ErrValidation, v, typ.String())
	}
	if typ.Size > 64 {
		return v, nil
	}

	goType := typ.GetType()
	if typ.T == abi.UintTy {
		return reflect.ValueOf(v.Uint64()).Convert(goType).Interface(), nil
	}

	return reflect.ValueOf(v.Int64()).Convert(goType).Interface(), nil
}
