package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenRecord(address string, chainID uint64) AddressRef {
	return AddressRef{Address: address, ChainID: chainID, Type: TokenContractType, Version: DefaultTokenVersion}
}

func TestEnvFileStore_Upsert(t *testing.T) {
	t.Parallel()

	const addr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	tests := []struct {
		name     string
		existing string
		perm     os.FileMode
		want     map[string]string
	}{
		{
			name: "creates the file",
			want: map[string]string{ContractAddressKey: addr},
		},
		{
			name:     "preserves other variables",
			existing: "MAIN_PRIVATE_KEY=abc\nRPC_URL=http://localhost:8545\n",
			want: map[string]string{
				"MAIN_PRIVATE_KEY": "abc",
				"RPC_URL":          "http://localhost:8545",
				ContractAddressKey: addr,
			},
		},
		{
			name:     "restricts a readable file",
			existing: "MAIN_PRIVATE_KEY=abc\n",
			perm:     0o644,
			want: map[string]string{
				"MAIN_PRIVATE_KEY": "abc",
				ContractAddressKey: addr,
			},
		},
		{
			name:     "replaces a previous address",
			existing: "CONTRACT_ADDRESS=0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512\nMAIN_PRIVATE_KEY=abc\n",
			want: map[string]string{
				"MAIN_PRIVATE_KEY": "abc",
				ContractAddressKey: addr,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), ".env")
			if tt.existing != "" {
				perm := tt.perm
				if perm == 0 {
					perm = 0o600
				}
				require.NoError(t, os.WriteFile(path, []byte(tt.existing), perm))
				require.NoError(t, os.Chmod(path, perm))
			}

			store := NewEnvFileStore(path, 10218)
			require.NoError(t, store.Upsert(tokenRecord(addr, 10218)))

			got, err := godotenv.Read(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			ref, err := store.Get(NewAddressRefKey(10218, TokenContractType, DefaultTokenVersion, ""))
			require.NoError(t, err)
			assert.Equal(t, addr, ref.Address)
		})
	}
}

func TestEnvFileStore_UpsertRejectsForeignRecords(t *testing.T) {
	t.Parallel()

	store := NewEnvFileStore(filepath.Join(t.TempDir(), ".env"), 1)

	err := store.Upsert(tokenRecord("0x5FbDB2315678afecb367f032d93F642f64180aa3", 2))
	require.ErrorIs(t, err, ErrAddressRefInvalid)

	other := tokenRecord("0x5FbDB2315678afecb367f032d93F642f64180aa3", 1)
	other.Type = "Other"
	require.ErrorIs(t, store.Upsert(other), ErrAddressRefInvalid)

	require.ErrorIs(t, store.Upsert(tokenRecord("", 1)), ErrAddressRefInvalid)

	_, err = os.Stat(store.Path())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvFileStore_Fetch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Missing file.
	store := NewEnvFileStore(filepath.Join(dir, "missing.env"), 1)
	refs, err := store.Fetch()
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = store.Get(NewAddressRefKey(1, TokenContractType, DefaultTokenVersion, ""))
	require.ErrorIs(t, err, ErrAddressRefNotFound)

	// Empty variable.
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CONTRACT_ADDRESS=\n"), 0o600))
	refs, err = NewEnvFileStore(path, 1).Fetch()
	require.NoError(t, err)
	assert.Empty(t, refs)

	// Set variable.
	require.NoError(t, os.WriteFile(path, []byte("CONTRACT_ADDRESS=0x5FbDB2315678afecb367f032d93F642f64180aa3\n"), 0o600))
	store = NewEnvFileStore(path, 1)
	refs, err = store.Fetch()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, tokenRecord("0x5FbDB2315678afecb367f032d93F642f64180aa3", 1), refs[0])

	_, err = store.Get(NewAddressRefKey(1, TokenContractType, semver.MustParse("2.0.0"), ""))
	require.ErrorIs(t, err, ErrAddressRefNotFound)
}
