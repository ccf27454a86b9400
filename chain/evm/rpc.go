package evm

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
)

// RPC is a single JSON-RPC endpoint of the chain.
type RPC struct {
	Name string
	URL  string
}

// ToEndpoint validates the URL and returns it for dialing. Only http(s) and ws(s) schemes are
// accepted.
func (r RPC) ToEndpoint() (string, error) {
	if r.URL == "" {
		return "", fmt.Errorf("rpc %q: url is required", r.Name)
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("rpc %q: invalid url: %w", r.Name, err)
	}

	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return r.URL, nil
	default:
		return "", fmt.Errorf("rpc %q: unsupported url scheme %q", r.Name, u.Scheme)
	}
}

// RPCConfig is the chain endpoint configuration: the expected chain id and one or more RPCs,
// the first being the preferred one.
type RPCConfig struct {
	// ChainID is optional. When nil, the chain id served by the first healthy RPC is adopted and
	// every other RPC must serve the same one.
	ChainID *big.Int
	RPCs    []RPC
}

func (c RPCConfig) validate() error {
	if len(c.RPCs) == 0 {
		return errors.New("no RPCs provided, need at least one")
	}
	if c.ChainID != nil && c.ChainID.Sign() <= 0 {
		return errors.New("chain id must be positive")
	}

	return nil
}
