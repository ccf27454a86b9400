package provider

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerGenerator is an interface for generating geth's *bind.TransactOpts instances and
// providing hash signing capabilities. The TransactOpts Signer signs every transaction of the
// distributor wallet.
type SignerGenerator interface {
	Generate(chainID *big.Int) (*bind.TransactOpts, error)
	SignHash(hash []byte) ([]byte, error)
}

var (
	_ SignerGenerator = (*transactorFromRaw)(nil)
	_ SignerGenerator = (*transactorRandom)(nil)
)

// TransactorFromRaw returns a generator which creates a transactor from a raw hex encoded
// private key. A leading 0x is accepted.
func TransactorFromRaw(privKey string) SignerGenerator {
	return &transactorFromRaw{
		privKey: strings.TrimPrefix(strings.TrimSpace(privKey), "0x"),
	}
}

// transactorFromRaw is a SignerGenerator that creates a transactor from a private key.
type transactorFromRaw struct {
	privKey string
}

func (g *transactorFromRaw) key() (*ecdsa.PrivateKey, error) {
	privKey, err := crypto.HexToECDSA(g.privKey)
	if err != nil {
		// The key itself is never part of the error.
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	return privKey, nil
}

// Generate parses the hex encoded private key and returns the bind transactor options.
func (g *transactorFromRaw) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	return bind.NewKeyedTransactorWithChainID(privKey, chainID)
}

// SignHash signs a hash using the private key stored in the generator.
func (g *transactorFromRaw) SignHash(hash []byte) ([]byte, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}

	return sig, nil
}

// TransactorRandom is a SignerGenerator that creates a transactor with a random private key.
// A random private key is generated the first time Generate() or SignHash is called, and the same
// key is used for subsequent calls.
func TransactorRandom() SignerGenerator {
	return &transactorRandom{}
}

// transactorRandom is a SignerGenerator that creates a transactor from a random keypair.
type transactorRandom struct {
	privKey *ecdsa.PrivateKey
}

func (g *transactorRandom) key() (*ecdsa.PrivateKey, error) {
	if g.privKey == nil {
		privKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate random private key: %w", err)
		}
		g.privKey = privKey
	}

	return g.privKey, nil
}

// Generate generates a random key and returns the bind transactor options.
func (g *transactorRandom) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	return bind.NewKeyedTransactorWithChainID(privKey, chainID)
}

// SignHash signs a hash using the same random private key generated in Generate().
func (g *transactorRandom) SignHash(hash []byte) ([]byte, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}

	return sig, nil
}
