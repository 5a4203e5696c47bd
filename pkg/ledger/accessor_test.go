package ledger_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/borsh"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
	"github.com/code-payments/poc-ledger/pkg/testutil"
)

type wallet struct {
	Authority solana.PublicKey
	Vault     solana.PublicKey
	Deposited uint64
}

func TestAccessor_GetTyped(t *testing.T) {
	env := setup(t, nil)

	keys := testutil.GenerateSolanaKeys(t, 4)
	address, owner := keys[0], keys[1]

	expected := wallet{
		Authority: solana.MustPublicKey(keys[2]),
		Vault:     solana.MustPublicKey(keys[3]),
		Deposited: 10_000,
	}
	require.NoError(t, env.store.Put(env.ctx, &ledger.Account{
		Address:  address,
		Lamports: 1,
		Owner:    owner,
		Data:     borsh.MustMarshal(expected),
	}))

	var actual wallet
	require.NoError(t, env.accessor.GetTyped(env.ctx, address, &actual))
	assert.Equal(t, expected, actual)

	typed, err := ledger.GetTypedAs[wallet](env.ctx, env.accessor, address)
	require.NoError(t, err)
	assert.Equal(t, expected, *typed)

	raw, err := env.accessor.GetRaw(env.ctx, address)
	require.NoError(t, err)
	assert.EqualValues(t, 1, raw.Lamports)
	assert.Len(t, raw.Data, 32+32+8)
}

func TestAccessor_DecodeIsExact(t *testing.T) {
	env := setup(t, nil)

	keys := testutil.GenerateSolanaKeys(t, 3)
	encoded := borsh.MustMarshal(wallet{Deposited: 1})

	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"trailing", append(append([]byte(nil), encoded...), 0)},
		{"truncated", encoded[:len(encoded)-1]},
		{"empty", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			address := testutil.GenerateSolanaKeys(t, 1)[0]
			require.NoError(t, env.store.Put(env.ctx, &ledger.Account{
				Address:  address,
				Lamports: 1,
				Owner:    keys[0],
				Data:     tc.data,
			}))

			var out wallet
			err := env.accessor.GetTyped(env.ctx, address, &out)
			assert.True(t, errors.Is(err, ledger.ErrDecode), "unexpected error: %v", err)

			_, err = ledger.GetTypedAs[wallet](env.ctx, env.accessor, address)
			assert.True(t, errors.Is(err, ledger.ErrDecode), "unexpected error: %v", err)
		})
	}
}

func TestAccessor_Unmarshaler(t *testing.T) {
	env := setup(t, nil)

	keys := testutil.GenerateSolanaKeys(t, 3)
	address := keys[0]

	expected := token.Account{
		Mint:   solana.MustPublicKey(keys[1]),
		Owner:  solana.MustPublicKey(keys[2]),
		Amount: 1_000_000,
		State:  token.AccountStateInitialized,
	}
	require.NoError(t, env.store.Put(env.ctx, &ledger.Account{
		Address:  address,
		Lamports: 1,
		Owner:    token.ProgramKey,
		Data:     expected.Marshal(),
	}))

	actual, err := ledger.GetTypedAs[token.Account](env.ctx, env.accessor, address)
	require.NoError(t, err)
	assert.Equal(t, expected, *actual)

	// A mint is not a token account
	var mint token.Mint
	assert.True(t, errors.Is(env.accessor.GetTyped(env.ctx, address, &mint), ledger.ErrDecode))
}

func TestAccessor_NotFound(t *testing.T) {
	env := setup(t, nil)

	address := testutil.GenerateSolanaKeys(t, 1)[0]

	_, err := env.accessor.GetRaw(env.ctx, address)
	assert.Equal(t, ledger.ErrAccountNotFound, err)

	var out wallet
	assert.Equal(t, ledger.ErrAccountNotFound, env.accessor.GetTyped(env.ctx, address, &out))

	_, err = ledger.GetTypedAs[wallet](env.ctx, env.accessor, address)
	assert.Equal(t, ledger.ErrAccountNotFound, err)
}
