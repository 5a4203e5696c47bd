package tests

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
	"github.com/code-payments/poc-ledger/pkg/testutil"
)

func RunTests(t *testing.T, s ledger.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s ledger.Store){
		testRoundTrip,
		testPutOverwrites,
		testPutErrors,
		testRemove,
		testCredit,
		testGetAll,
		testIsolation,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s ledger.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		ctx := context.Background()

		keys := testutil.GenerateSolanaKeys(t, 2)
		expected := &ledger.Account{
			Address:  keys[0],
			Lamports: 1_000_000,
			Owner:    keys[1],
			Data:     []byte{1, 2, 3, 4},
		}
		cloned := expected.Clone()

		_, err := s.Get(ctx, expected.Address)
		assert.Equal(t, ledger.ErrAccountNotFound, err)

		require.NoError(t, s.Put(ctx, expected))

		actual, err := s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assert.True(t, cloned.Equal(actual))
	})
}

func testPutOverwrites(t *testing.T, s ledger.Store) {
	t.Run("testPutOverwrites", func(t *testing.T) {
		ctx := context.Background()

		keys := testutil.GenerateSolanaKeys(t, 2)
		record := &ledger.Account{
			Address:  keys[0],
			Lamports: 10,
			Owner:    system.ProgramKey,
		}
		require.NoError(t, s.Put(ctx, record))

		record.Lamports = 20
		record.Owner = keys[1]
		record.Data = make([]byte, 8)
		record.Executable = true
		require.NoError(t, s.Put(ctx, record))

		actual, err := s.Get(ctx, record.Address)
		require.NoError(t, err)
		assert.True(t, record.Equal(actual))
	})
}

func testPutErrors(t *testing.T, s ledger.Store) {
	t.Run("testPutErrors", func(t *testing.T) {
		ctx := context.Background()

		keys := testutil.GenerateSolanaKeys(t, 1)
		for _, invalid := range []*ledger.Account{
			{Address: keys[0][:31], Owner: system.ProgramKey},
			{Address: keys[0]},
		} {
			assert.Error(t, s.Put(ctx, invalid))
		}

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func testRemove(t *testing.T, s ledger.Store) {
	t.Run("testRemove", func(t *testing.T) {
		ctx := context.Background()

		keys := testutil.GenerateSolanaKeys(t, 1)

		assert.Equal(t, ledger.ErrAccountNotFound, s.Remove(ctx, keys[0]))

		require.NoError(t, s.Put(ctx, &ledger.Account{Address: keys[0], Lamports: 1, Owner: system.ProgramKey}))
		require.NoError(t, s.Remove(ctx, keys[0]))

		_, err := s.Get(ctx, keys[0])
		assert.Equal(t, ledger.ErrAccountNotFound, err)
		assert.Equal(t, ledger.ErrAccountNotFound, s.Remove(ctx, keys[0]))
	})
}

func testCredit(t *testing.T, s ledger.Store) {
	t.Run("testCredit", func(t *testing.T) {
		ctx := context.Background()

		keys := testutil.GenerateSolanaKeys(t, 2)

		require.NoError(t, s.Credit(ctx, keys[0], 500))
		require.NoError(t, s.Credit(ctx, keys[0], 250))

		actual, err := s.Get(ctx, keys[0])
		require.NoError(t, err)
		assert.EqualValues(t, 750, actual.Lamports)
		assert.EqualValues(t, system.ProgramKey, actual.Owner)
		assert.Empty(t, actual.Data)
		assert.False(t, actual.Executable)

		// Crediting keeps the owner and data of existing accounts
		require.NoError(t, s.Put(ctx, &ledger.Account{Address: keys[1], Lamports: 1, Owner: keys[0], Data: []byte{7}}))
		require.NoError(t, s.Credit(ctx, keys[1], 9))

		actual, err = s.Get(ctx, keys[1])
		require.NoError(t, err)
		assert.EqualValues(t, 10, actual.Lamports)
		assert.EqualValues(t, keys[0], actual.Owner)
		assert.Equal(t, []byte{7}, actual.Data)

		assert.Equal(t, ledger.ErrLamportOverflow, s.Credit(ctx, keys[1], math.MaxUint64))

		actual, err = s.Get(ctx, keys[1])
		require.NoError(t, err)
		assert.EqualValues(t, 10, actual.Lamports)
	})
}

func testGetAll(t *testing.T, s ledger.Store) {
	t.Run("testGetAll", func(t *testing.T) {
		ctx := context.Background()

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		keys := testutil.GenerateSolanaKeys(t, 10)
		for i, key := range keys {
			require.NoError(t, s.Credit(ctx, key, uint64(i+1)))
		}

		all, err = s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, len(keys))

		for i := 1; i < len(all); i++ {
			assert.True(t, bytes.Compare(all[i-1].Address, all[i].Address) < 0)
		}
	})
}

func testIsolation(t *testing.T, s ledger.Store) {
	t.Run("testIsolation", func(t *testing.T) {
		ctx := context.Background()

		keys := testutil.GenerateSolanaKeys(t, 1)
		record := &ledger.Account{
			Address:  keys[0],
			Lamports: 5,
			Owner:    system.ProgramKey,
			Data:     []byte{1, 2, 3},
		}
		require.NoError(t, s.Put(ctx, record))

		// Mutating the input or output must not leak into the store
		record.Data[0] = 0xff
		fetched, err := s.Get(ctx, keys[0])
		require.NoError(t, err)
		fetched.Data[1] = 0xff
		fetched.Lamports = 0

		actual, err := s.Get(ctx, keys[0])
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, actual.Data)
		assert.EqualValues(t, 5, actual.Lamports)
	})
}
