package datastore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

const (
	// DefaultEnvFile is the dotenv file the deployed token address is written to.
	DefaultEnvFile = ".env"
	// ContractAddressKey is the variable holding the deployed token address.
	ContractAddressKey = "CONTRACT_ADDRESS"
)

var _ MutableAddressRefStore = &EnvFileStore{}

// EnvFileStore persists the address of the token as a single variable of a dotenv file. Other
// variables of the file are preserved, comments and ordering are not.
//
// The file holds one address, so the store holds at most one record: the token on the store's
// chain, at DefaultTokenVersion without a qualifier.
type EnvFileStore struct {
	mu      sync.Mutex
	path    string
	key     string
	chainID uint64
}

// NewEnvFileStore returns a store writing ContractAddressKey to the dotenv file at path.
func NewEnvFileStore(path string, chainID uint64) *EnvFileStore {
	return &EnvFileStore{path: path, key: ContractAddressKey, chainID: chainID}
}

// Path returns the path of the dotenv file.
func (s *EnvFileStore) Path() string {
	return s.path
}

func (s *EnvFileStore) read() (map[string]string, error) {
	env, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	return env, nil
}

func (s *EnvFileStore) record(address string) AddressRef {
	return AddressRef{
		Address: address,
		ChainID: s.chainID,
		Type:    TokenContractType,
		Version: DefaultTokenVersion,
	}
}

// Get returns the token record when the file holds an address and key identifies the token on
// the store's chain.
func (s *EnvFileStore) Get(key AddressRefKey) (AddressRef, error) {
	refs, err := s.Fetch()
	if err != nil {
		return AddressRef{}, err
	}
	for _, ref := range refs {
		if ref.Key().Equals(key) {
			return ref, nil
		}
	}

	return AddressRef{}, ErrAddressRefNotFound
}

// Fetch returns the token record, or no record when the variable is unset or empty.
func (s *EnvFileStore) Fetch() ([]AddressRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return nil, err
	}

	address := env[s.key]
	if address == "" {
		return []AddressRef{}, nil
	}

	return []AddressRef{s.record(address)}, nil
}

// Upsert writes the record's address to the file, creating the file if needed.
func (s *EnvFileStore) Upsert(record AddressRef) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ChainID != s.chainID || record.Type != TokenContractType {
		return fmt.Errorf("%w: %s can only hold the %s on chain %d", ErrAddressRefInvalid, s.path, TokenContractType, s.chainID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return err
	}
	env[s.key] = record.EVMAddress().Hex()

	if err := writeEnvFile(s.path, env); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	return nil
}

// writeEnvFile replaces the content of the dotenv file at path with env. The file may also hold
// the wallet key, so it is restricted to its owner before anything is written to it.
func writeEnvFile(path string, env map[string]string) (err error) {
	content, err := godotenv.Marshal(env)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	// An existing file keeps its mode on open.
	if err = f.Chmod(0o600); err != nil {
		return fmt.Errorf("failed to restrict permissions: %w", err)
	}
	_, err = f.WriteString(content + "\n")

	return err
}
