package datastore

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAddressRefNotFound = errors.New("no address ref record found for the provided key")
	ErrAddressRefExists   = errors.New("an address ref with the supplied key already exists")
	ErrAddressRefInvalid  = errors.New("address ref is invalid")
)

// ContractType is a simple string type for identifying contract types.
type ContractType string

func (ct ContractType) String() string {
	return string(ct)
}

// TokenContractType is the type of the ERC20 token the deployer creates.
const TokenContractType ContractType = "CustomToken"

// DefaultTokenVersion is the version recorded for deployed tokens.
var DefaultTokenVersion = semver.MustParse("1.0.0")

// AddressRef is a reference to a deployed contract.
type AddressRef struct {
	// Address is the EIP-55 checksummed address of the contract.
	Address string `json:"address"`
	// ChainID is the EVM chain id of the chain the contract is deployed on.
	ChainID uint64 `json:"chainId"`
	// Type is the type of the contract.
	Type ContractType `json:"type"`
	// Version is the version of the contract.
	Version *semver.Version `json:"version"`
	// Qualifier distinguishes several contracts of the same type and version, e.g. the token
	// symbol.
	Qualifier string `json:"qualifier,omitempty"`
}

// Key returns the AddressRefKey of the record.
func (r AddressRef) Key() AddressRefKey {
	return NewAddressRefKey(r.ChainID, r.Type, r.Version, r.Qualifier)
}

// EVMAddress returns the address as a go-ethereum address.
func (r AddressRef) EVMAddress() common.Address {
	return common.HexToAddress(r.Address)
}

// Validate checks that the record carries a well formed, non zero address and a version.
func (r AddressRef) Validate() error {
	if !common.IsHexAddress(r.Address) {
		return fmt.Errorf("%w: %q is not an address", ErrAddressRefInvalid, r.Address)
	}
	if r.EVMAddress() == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrAddressRefInvalid)
	}
	if r.Version == nil {
		return fmt.Errorf("%w: version is required", ErrAddressRefInvalid)
	}

	return nil
}

// AddressRefKey uniquely identifies a record in an AddressRefStore.
type AddressRefKey struct {
	chainID      uint64
	contractType ContractType
	version      *semver.Version
	qualifier    string
}

// NewAddressRefKey creates a new AddressRefKey instance.
func NewAddressRefKey(chainID uint64, contractType ContractType, version *semver.Version, qualifier string) AddressRefKey {
	return AddressRefKey{
		chainID:      chainID,
		contractType: contractType,
		version:      version,
		qualifier:    qualifier,
	}
}

// ChainID returns the chain id of the chain where the contract is deployed.
func (a AddressRefKey) ChainID() uint64 { return a.chainID }

// Type returns the contract type of the contract.
func (a AddressRefKey) Type() ContractType { return a.contractType }

// Version returns the semantic version of the contract.
func (a AddressRefKey) Version() *semver.Version { return a.version }

// Qualifier returns the optional qualifier for the contract.
func (a AddressRefKey) Qualifier() string { return a.qualifier }

// Equals returns true if the two keys are equal.
func (a AddressRefKey) Equals(other AddressRefKey) bool {
	return a.chainID == other.chainID &&
		a.contractType == other.contractType &&
		versionsEqual(a.version, other.version) &&
		a.qualifier == other.qualifier
}

func (a AddressRefKey) String() string {
	v := "<nil>"
	if a.version != nil {
		v = a.version.String()
	}

	return fmt.Sprintf("%d-%s-%s-%s", a.chainID, a.contractType, v, a.qualifier)
}

func versionsEqual(a, b *semver.Version) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Equal(b)
}

// AddressRefStore reads address refs.
type AddressRefStore interface {
	Get(key AddressRefKey) (AddressRef, error)
	Fetch() ([]AddressRef, error)
}

// MutableAddressRefStore reads and writes address refs.
type MutableAddressRefStore interface {
	AddressRefStore
	// Upsert adds the record, or replaces the record with the same key.
	Upsert(record AddressRef) error
}
