package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
)

func TestGetCommand_Error(t *testing.T) {
	cmd, err := GetCommand(nil)
	assert.Error(t, err)
	assert.Equal(t, CommandUnknown, cmd)
}

func TestInitializeMint(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := InitializeMint(keys[0], keys[1], nil, 9)
	assert.Equal(t, ProgramKey, instruction.Program)
	require.Len(t, instruction.Data, 3+32)
	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.Equal(t, system.RentSysVar, instruction.Accounts[1].PublicKey)

	decompiled, err := DecompileInitializeMint(instruction.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 9, decompiled.Decimals)
	assert.True(t, decompiled.MintAuthority.Equals(keys[1]))
	assert.True(t, decompiled.FreezeAuthority.IsZero())

	instruction = InitializeMint(keys[0], keys[1], keys[2], 6)
	require.Len(t, instruction.Data, 3+64)
	decompiled, err = DecompileInitializeMint(instruction.Data)
	require.NoError(t, err)
	assert.True(t, decompiled.FreezeAuthority.Equals(keys[2]))

	_, err = DecompileInitializeMint(instruction.Data[:10])
	assert.Error(t, err)

	_, err = DecompileInitializeMint([]byte{byte(CommandTransfer)})
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestInitializeAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := InitializeAccount(keys[0], keys[1], keys[2])
	assert.Equal(t, []byte{byte(CommandInitializeAccount)}, instruction.Data)
	require.Len(t, instruction.Accounts, 4)

	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[0].IsSigner)
	for i := 1; i < 4; i++ {
		assert.False(t, instruction.Accounts[i].IsWritable)
		assert.False(t, instruction.Accounts[i].IsSigner)
	}

	assert.Equal(t, keys[1], instruction.Accounts[1].PublicKey)
	assert.Equal(t, keys[2], instruction.Accounts[2].PublicKey)
	assert.Equal(t, system.RentSysVar, instruction.Accounts[3].PublicKey)
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := Transfer(keys[0], keys[1], keys[2], 123456789)

	expectedAmount := make([]byte, 8)
	binary.LittleEndian.PutUint64(expectedAmount, 123456789)

	assert.EqualValues(t, 3, instruction.Data[0])
	assert.EqualValues(t, expectedAmount, instruction.Data[1:])

	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)
	assert.False(t, instruction.Accounts[2].IsWritable)

	amount, err := DecompileAmount(CommandTransfer, instruction.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 123456789, amount)

	_, err = DecompileAmount(CommandMintTo, instruction.Data)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	_, err = DecompileAmount(CommandTransfer, instruction.Data[:1])
	assert.Error(t, err)
}

func TestTransferChecked(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := TransferChecked(keys[0], keys[1], keys[2], keys[3], 123456789, 3)

	assert.EqualValues(t, CommandTransferChecked, instruction.Data[0])
	assert.EqualValues(t, 3, instruction.Data[9])

	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsWritable)
	assert.True(t, instruction.Accounts[3].IsSigner)
	assert.False(t, instruction.Accounts[3].IsWritable)

	amount, decimals, err := DecompileTransferChecked(instruction.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 123456789, amount)
	assert.EqualValues(t, 3, decimals)

	_, _, err = DecompileTransferChecked(instruction.Data[:9])
	assert.Error(t, err)
}

func TestMintTo(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := MintTo(keys[0], keys[1], keys[2], 42)
	require.Len(t, instruction.Accounts, 3)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)

	amount, err := DecompileAmount(CommandMintTo, instruction.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 42, amount)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		keys[i] = pub
	}

	return keys
}
