package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/solana"
)

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", base58.Encode(ProgramKey))
	assert.Len(t, RentSysVar, ed25519.PublicKeySize)
	assert.Len(t, SysvarProgramKey, ed25519.PublicKeySize)
}

func TestCreateAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	command := make([]byte, 4)
	lamports := make([]byte, 8)
	binary.LittleEndian.PutUint64(lamports, 12345)
	size := make([]byte, 8)
	binary.LittleEndian.PutUint64(size, 67890)

	assert.Equal(t, command, instruction.Data[0:4])
	assert.Equal(t, lamports, instruction.Data[4:12])
	assert.Equal(t, size, instruction.Data[12:20])
	assert.Equal(t, []byte(keys[2]), instruction.Data[20:52])

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[1].IsSigner)

	// The data must survive a trip through the wire format.
	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(keys[0], instruction).Marshal()))
	decompiledIxs, err := tx.Message.Decompile()
	require.NoError(t, err)

	decompiled, err := DecompileCreateAccount(decompiledIxs[0].Data)
	require.NoError(t, err)
	assert.Equal(t, keys[2], decompiled.Owner)
	assert.EqualValues(t, 12345, decompiled.Lamports)
	assert.EqualValues(t, 67890, decompiled.Size)
}

func TestDecompileNonCreate(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	_, err := DecompileCreateAccount(instruction.Data[:51])
	assert.Error(t, err)

	binary.LittleEndian.PutUint32(instruction.Data, uint32(CommandAllocate))
	_, err = DecompileCreateAccount(instruction.Data)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	_, err = DecompileCreateAccount(make([]byte, 3))
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestAssign(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Assign(keys[0], keys[1])
	cmd, err := GetCommand(instruction.Data)
	require.NoError(t, err)
	assert.Equal(t, CommandAssign, cmd)

	require.Len(t, instruction.Accounts, 1)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)

	owner, err := DecompileAssign(instruction.Data)
	require.NoError(t, err)
	assert.Equal(t, keys[1], owner)
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 10000)
	cmd, err := GetCommand(instruction.Data)
	require.NoError(t, err)
	assert.Equal(t, CommandTransfer, cmd)

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)

	lamports, err := DecompileTransfer(instruction.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, lamports)

	_, err = DecompileAllocate(instruction.Data)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestAllocate(t *testing.T) {
	keys := generateKeys(t, 1)

	instruction := Allocate(keys[0], 165)
	size, err := DecompileAllocate(instruction.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 165, size)
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
