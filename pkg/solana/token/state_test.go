package token

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/solana"
)

func TestUnmarshal(t *testing.T) {
	data, err := hex.DecodeString("118a08c9d4cc46c576282e0daf050bbdb04f03313e35e5db3f3def69fa1eeec42b15a9cd4bef2cd809e464570d2a6cbd9bcc64e32ea4ebbcf748757bbb3dd5bd000084e2506ce67c000000000000000000000000000000000000000000000000000000000000000000000000010000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	mint, err := solana.PublicKeyFromBase58("2BU1Xgyzqixhjaq9Pa5cNsaa1gSejLeNtDaDRv29qoZm")
	require.NoError(t, err)

	var a Account
	require.NoError(t, a.Unmarshal(data))
	assert.Equal(t, mint, a.Mint)
	assert.Equal(t, uint64(9e13*1e5), a.Amount)
	assert.True(t, a.Delegate.IsZero())
	assert.True(t, a.CloseAuthority.IsZero())
	assert.Equal(t, AccountStateInitialized, a.State)

	var rtt Account
	require.NoError(t, rtt.Unmarshal(a.Marshal()))
	assert.Equal(t, a, rtt)
	assert.Equal(t, data, rtt.Marshal())
}

func TestAccount_RoundTrip(t *testing.T) {
	isNative := uint64(2)
	expected := Account{
		Mint:           solana.PublicKey{1},
		Owner:          solana.PublicKey{2},
		Amount:         10,
		Delegate:       solana.PublicKey{3},
		State:          AccountStateFrozen,
		IsNative:       &isNative,
		CloseAuthority: solana.PublicKey{2},
	}

	var actual Account
	require.NoError(t, actual.Unmarshal(expected.Marshal()))
	assert.Equal(t, expected, actual)

	assert.Equal(t, ErrInvalidAccountSize, actual.Unmarshal(make([]byte, AccountSize-1)))
}

func TestMint_RoundTrip(t *testing.T) {
	expected := Mint{
		MintAuthority: solana.PublicKey{4},
		Supply:        1_000_000,
		Decimals:      9,
		IsInitialized: true,
	}

	b := expected.Marshal()
	require.Len(t, b, MintSize)
	assert.EqualValues(t, 9, b[DecimalsOffset])

	var actual Mint
	require.NoError(t, actual.Unmarshal(b))
	assert.Equal(t, expected, actual)

	assert.Equal(t, ErrInvalidMintSize, actual.Unmarshal(b[:10]))
}
