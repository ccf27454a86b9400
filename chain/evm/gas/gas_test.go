package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPrice struct {
	price *big.Int
	err   error
}

func (s staticPrice) SuggestGasPrice(context.Context) (*big.Int, error) {
	return s.price, s.err
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.GWei))
}

func TestPolicy_Compute(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()

	tests := []struct {
		name  string
		price *big.Int
	}{
		{name: "one wei", price: big.NewInt(1)},
		{name: "one gwei", price: gwei(1)},
		{name: "thirty gwei", price: gwei(30)},
		{name: "zero", price: big.NewInt(0)},
		{name: "huge", price: new(big.Int).Lsh(big.NewInt(1), 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fees := policy.Compute(tt.price)
			assert.Equal(t, 0, fees.MaxFeePerGas.Cmp(new(big.Int).Mul(tt.price, big.NewInt(2))))
			assert.Equal(t, 0, fees.MaxPriorityFeePerGas.Cmp(gwei(9)))
		})
	}
}

func TestPolicy_Compute_doesNotAliasInputs(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	price := gwei(10)

	fees := policy.Compute(price)
	fees.MaxPriorityFeePerGas.SetInt64(0)
	fees.MaxFeePerGas.SetInt64(0)

	assert.Equal(t, 0, price.Cmp(gwei(10)))
	assert.Equal(t, 0, policy.PriorityFee.Cmp(gwei(9)))
}

func TestPolicy_Suggest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		src        staticPrice
		wantMaxFee *big.Int
		wantErr    bool
	}{
		{
			name:       "network price above floor",
			src:        staticPrice{price: gwei(20)},
			wantMaxFee: gwei(40),
		},
		{
			name:       "zero network price is floored",
			src:        staticPrice{price: big.NewInt(0)},
			wantMaxFee: gwei(9),
		},
		{
			name:    "network error",
			src:     staticPrice{err: errors.New("connection refused")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fees, err := DefaultPolicy().Suggest(context.Background(), tt.src)
			if tt.wantErr {
				require.ErrorContains(t, err, "failed to get gas price")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, fees.MaxFeePerGas.Cmp(tt.wantMaxFee), "got %s", fees.MaxFeePerGas)
			assert.Equal(t, 0, fees.MaxPriorityFeePerGas.Cmp(gwei(9)))
			assert.GreaterOrEqual(t, fees.MaxFeePerGas.Cmp(fees.MaxPriorityFeePerGas), 0)
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultPolicy().Validate())
	require.Error(t, Policy{Multiplier: 0, PriorityFee: gwei(1)}.Validate())
	require.Error(t, Policy{Multiplier: 2}.Validate())
	require.Error(t, Policy{Multiplier: 2, PriorityFee: gwei(1), MinGasPrice: big.NewInt(-1)}.Validate())
}
