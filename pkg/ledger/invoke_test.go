package ledger_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/pointer"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
	"github.com/code-payments/poc-ledger/pkg/testutil"
)

// pdaTransferProgram moves lamports out of the account derived from its id
// and the "vault" seed. data[0] is the bump, and data[1] requests that the
// signer seeds be withheld.
func pdaTransferProgram(amount uint64) ledger.ProgramFunc {
	return func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		vault, destination := accounts[0], accounts[1]

		ix := system.Transfer(vault.Address, destination.Address, amount)
		if len(data) > 1 && data[1] == 1 {
			return ctx.Invoke(ix)
		}
		return ctx.InvokeSigned(ix, [][]byte{[]byte("vault"), {data[0]}})
	}
}

func TestInvokeSigned_ProgramDerivedSigner(t *testing.T) {
	env := setup(t, nil)
	program := env.deploy(t, pdaTransferProgram(40_000))

	vault, bump, err := solana.FindProgramAddressAndBump(program, []byte("vault"))
	require.NoError(t, err)
	destination := testutil.GenerateSolanaKeys(t, 1)[0]
	require.NoError(t, env.store.Credit(env.ctx, vault, 100_000))

	result, err := env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
		program,
		[]byte{bump},
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)))
	require.NoError(t, err)

	assert.EqualValues(t, 60_000, env.balance(t, vault))
	assert.EqualValues(t, 40_000, env.balance(t, destination))
	assert.Contains(t, result.LogMessages[1], "invoke [2]")
}

func TestInvoke_PrivilegeEscalation(t *testing.T) {
	env := setup(t, nil)
	program := env.deploy(t, pdaTransferProgram(40_000))

	vault, bump, err := solana.FindProgramAddressAndBump(program, []byte("vault"))
	require.NoError(t, err)
	destination := testutil.GenerateSolanaKeys(t, 1)[0]
	require.NoError(t, env.store.Credit(env.ctx, vault, 100_000))
	before := env.dump(t)

	// Without signer seeds, the vault cannot sign
	_, err = env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
		program,
		[]byte{bump, 1},
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)))
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorPrivilegeEscalation)

	// A readonly destination cannot be made writable
	_, err = env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
		program,
		[]byte{bump},
		solana.NewAccountMeta(vault, false),
		solana.NewReadonlyAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)))
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorPrivilegeEscalation)

	// Seeds for a different address do not grant a signature
	_, err = env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
		program,
		[]byte{bump - 1},
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)))
	require.Error(t, err)

	assert.Empty(t, cmp.Diff(before, env.dump(t)))
}

func TestInvoke_ProgramMustBeProvided(t *testing.T) {
	env := setup(t, nil)
	program := env.deploy(t, pdaTransferProgram(1))

	vault, bump, err := solana.FindProgramAddressAndBump(program, []byte("vault"))
	require.NoError(t, err)
	destination := testutil.GenerateSolanaKeys(t, 1)[0]
	require.NoError(t, env.store.Credit(env.ctx, vault, 100_000))

	_, err = env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
		program,
		[]byte{bump},
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(destination, false),
	)))
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingAccount)
}

func TestInvoke_CallDepth(t *testing.T) {
	env := setup(t, &ledger.Overrides{MaxInvokeDepth: pointer.Uint64(4)})

	// Recurses into itself data[0] more times
	program := env.deploy(t, func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		if data[0] == 0 {
			return nil
		}
		self := ctx.ProgramID()
		return ctx.Invoke(solana.NewInstruction(self, []byte{data[0] - 1}, solana.NewReadonlyAccountMeta(self, false)))
	})

	execute := func(remaining byte) error {
		_, err := env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
			program,
			[]byte{remaining},
			solana.NewReadonlyAccountMeta(program, false),
		)))
		return err
	}

	require.NoError(t, execute(3))
	testutil.AssertInstructionError(t, execute(4), 0, solana.InstructionErrorCallDepth)
}

func TestInvoke_Reentrancy(t *testing.T) {
	env := setup(t, nil)

	var first, second ed25519.PublicKey
	first = env.deploy(t, func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		if len(data) > 0 {
			return nil
		}
		return ctx.Invoke(solana.NewInstruction(
			second,
			nil,
			solana.NewReadonlyAccountMeta(first, false),
			solana.NewReadonlyAccountMeta(second, false),
		))
	})
	second = env.deploy(t, func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		return ctx.Invoke(solana.NewInstruction(first, []byte{1}, solana.NewReadonlyAccountMeta(first, false)))
	})

	_, err := env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
		first,
		nil,
		solana.NewReadonlyAccountMeta(first, false),
		solana.NewReadonlyAccountMeta(second, false),
	)))
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorReentrancyNotAllowed)
}

func TestInvoke_CallerChangesVerifiedBeforeCall(t *testing.T) {
	env := setup(t, nil)

	keys := testutil.GenerateSolanaKeys(t, 2)
	foreign, payer := keys[0], keys[1]

	program := env.deploy(t, func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ []byte) error {
		accounts[0].Data[0] = 1
		return ctx.Invoke(system.Transfer(accounts[1].Address, accounts[1].Address, 0))
	})

	require.NoError(t, env.store.Put(env.ctx, &ledger.Account{Address: foreign, Lamports: 10, Owner: system.ProgramKey, Data: []byte{0}}))
	require.NoError(t, env.store.Credit(env.ctx, payer, 10))

	_, err := env.executor.Execute(env.ctx, ledger.NewTransaction([]ed25519.PublicKey{payer}, solana.NewInstruction(
		program,
		nil,
		solana.NewAccountMeta(foreign, false),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)))
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorExternalAccountDataModified)
}

func TestInvokeSigned_CreatesProgramOwnedAccount(t *testing.T) {
	env := setup(t, nil)

	keys := testutil.GenerateSolanaKeys(t, 1)
	funder := keys[0]
	require.NoError(t, env.store.Credit(env.ctx, funder, 10_000_000))

	// Creates the account derived from its id, then writes to it
	program := env.deploy(t, func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		funder, account := accounts[0], accounts[1]

		lamports := ctx.Rent().MinimumBalance(4)
		err := ctx.InvokeSigned(
			system.CreateAccount(funder.Address, account.Address, ctx.ProgramID(), lamports, 4),
			[][]byte{[]byte("state"), {data[0]}},
		)
		if err != nil {
			return err
		}

		copy(account.Data, []byte{9, 9, 9, 9})
		return nil
	})

	address, bump, err := solana.FindProgramAddressAndBump(program, []byte("state"))
	require.NoError(t, err)

	_, err = env.executor.Execute(env.ctx, ledger.NewTransaction([]ed25519.PublicKey{funder}, solana.NewInstruction(
		program,
		[]byte{bump},
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)))
	require.NoError(t, err)

	created, err := env.accessor.GetRaw(env.ctx, address)
	require.NoError(t, err)
	assert.True(t, created.IsOwnedBy(program))
	assert.Equal(t, []byte{9, 9, 9, 9}, created.Data)
	assert.Equal(t, ledger.DefaultRent().MinimumBalance(4), created.Lamports)
	assert.Equal(t, 10_000_000-created.Lamports, env.balance(t, funder))

	// A second create fails, since the account is in use
	_, err = env.executor.Execute(env.ctx, ledger.NewTransaction([]ed25519.PublicKey{funder}, solana.NewInstruction(
		program,
		[]byte{bump},
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)))
	testutil.AssertInstructionError(t, err, 0, system.ErrorAccountAlreadyInUse)
}

func TestInvoke_FailedCalleeFailsTransaction(t *testing.T) {
	for _, tc := range []struct {
		name          string
		ownedByCallee bool
		calleeErr     error
		expected      solana.InstructionErrorKey
	}{
		{
			name:     "callee fails verification",
			expected: solana.InstructionErrorExternalAccountLamportSpend,
		},
		{
			name:          "callee returns an error",
			ownedByCallee: true,
			calleeErr:     solana.InstructionErrorInvalidArgument,
			expected:      solana.InstructionErrorInvalidArgument,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t, nil)

			keys := testutil.GenerateSolanaKeys(t, 2)
			victim, thief := keys[0], keys[1]

			calleeErr := tc.calleeErr
			callee := env.deploy(t, func(_ *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ []byte) error {
				accounts[0].Lamports -= 60_000
				accounts[1].Lamports += 60_000
				return calleeErr
			})

			// The caller drops the error from its call
			caller := env.deploy(t, func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ []byte) error {
				_ = ctx.Invoke(solana.NewInstruction(
					callee,
					nil,
					solana.NewAccountMeta(accounts[0].Address, false),
					solana.NewAccountMeta(accounts[1].Address, false),
				))
				return nil
			})

			owner := system.ProgramKey
			if tc.ownedByCallee {
				owner = callee
			}
			require.NoError(t, env.store.Put(env.ctx, &ledger.Account{Address: victim, Lamports: 100_000, Owner: owner}))
			require.NoError(t, env.store.Credit(env.ctx, thief, 1))
			before := env.dump(t)

			_, err := env.executor.Execute(env.ctx, ledger.NewTransaction(nil, solana.NewInstruction(
				caller,
				nil,
				solana.NewAccountMeta(victim, false),
				solana.NewAccountMeta(thief, false),
				solana.NewReadonlyAccountMeta(callee, false),
			)))
			testutil.AssertInstructionError(t, err, 0, tc.expected)

			assert.Empty(t, cmp.Diff(before, env.dump(t)))
			assert.EqualValues(t, 100_000, env.balance(t, victim))
			assert.EqualValues(t, 1, env.balance(t, thief))
		})
	}
}
