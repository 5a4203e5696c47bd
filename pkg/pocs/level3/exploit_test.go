package level3

import (
	"context"
	"crypto/ed25519"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/borsh"
	"github.com/code-payments/poc-ledger/pkg/testutil"
)

func setup(t *testing.T) (context.Context, *localenv.Environment) {
	ctx := context.Background()

	env, err := localenv.New(ctx, append(Options(), localenv.WithConfigProvider(ledger.WithOverrides(nil)))...)
	require.NoError(t, err)
	return ctx, env
}

func TestRun(t *testing.T) {
	ctx, env := setup(t)

	report, err := Run(ctx, env)
	require.NoError(t, err)
	assert.True(t, report.Exploited)
	assert.Len(t, report.Steps, 5)

	minBalance := ledger.DefaultRent().MinimumBalance(VaultSize)

	require.Len(t, report.Balances, 2)
	vault, attacker := report.Balances[0], report.Balances[1]
	assert.EqualValues(t, minBalance+TipAmount, vault.Before)
	assert.EqualValues(t, minBalance, vault.After)
	assert.EqualValues(t, TipAmount, attacker.After-attacker.Before)

	// The real pool still claims the tips
	pool, err := ledger.GetTypedAs[TipPool](ctx, env.Accessor(), env.Keypair(PoolIndex).Public().(ed25519.PublicKey))
	require.NoError(t, err)
	assert.EqualValues(t, TipAmount, pool.Value)
}

func TestVaultReadsAsPool(t *testing.T) {
	victimVault := testutil.GenerateSolanaKeys(t, 1)[0]
	attacker := testutil.GenerateSolanaKeys(t, 1)[0]

	data := borsh.MustMarshal(Vault{
		Creator:      solana.MustPublicKey(attacker),
		Fee:          AttackerFee,
		FeeRecipient: solana.MustPublicKey(victimVault),
		Seed:         AttackerSeedStart,
	})
	require.Len(t, data, VaultSize)

	var pool TipPool
	n, err := borsh.UnmarshalPrefix(data, &pool)
	require.NoError(t, err)
	assert.Equal(t, TipPoolSize, n)
	assert.True(t, pool.WithdrawAuthority.Equals(attacker))
	assert.True(t, pool.Vault.Equals(victimVault))
	assert.Equal(t, math.Float64bits(AttackerFee), pool.Value)

	// Only a strict decode tells the two apart
	assert.Error(t, borsh.Unmarshal(data, &pool))
}

func TestTipPool(t *testing.T) {
	ctx, env := setup(t)

	creator := env.Payer()
	creatorKey := creator.Public().(ed25519.PublicKey)

	seed, vault, err := FindVaultSeed(ProgramKey, VictimSeedStart)
	require.NoError(t, err)

	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Initialize(ProgramKey, vault, creatorKey, seed, CreatorFee, creatorKey),
	}, creator)
	require.NoError(t, err)

	state, err := ledger.GetTypedAs[Vault](ctx, env.Accessor(), vault)
	require.NoError(t, err)
	assert.True(t, state.Creator.Equals(creatorKey))
	assert.EqualValues(t, CreatorFee, state.Fee)
	assert.Equal(t, seed, state.Seed)

	// A vault can only be created once
	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Initialize(ProgramKey, vault, creatorKey, seed, CreatorFee, creatorKey),
	}, creator)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorAccountAlreadyInitialized)

	withdrawAuthority := env.Keypair(WithdrawAuthorityIndex)
	withdrawAuthorityKey := withdrawAuthority.Public().(ed25519.PublicKey)
	require.NoError(t, env.Airdrop(ctx, withdrawAuthorityKey, ActorLamports))

	pool := env.Keypair(PoolIndex)
	poolKey := pool.Public().(ed25519.PublicKey)
	require.NoError(t, env.CreateAccountRentExempt(ctx, pool, TipPoolSize, ProgramKey))

	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		CreatePool(ProgramKey, vault, withdrawAuthorityKey, poolKey),
	}, withdrawAuthority)
	require.NoError(t, err)

	// Pools must be zeroed
	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		CreatePool(ProgramKey, vault, withdrawAuthorityKey, poolKey),
	}, withdrawAuthority)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorAccountAlreadyInitialized)

	tipper := env.Keypair(TipperIndex)
	require.NoError(t, env.Airdrop(ctx, tipper.Public().(ed25519.PublicKey), ActorLamports))
	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Tip(ProgramKey, vault, poolKey, tipper.Public().(ed25519.PublicKey), TipAmount),
	}, tipper)
	require.NoError(t, err)

	before, err := env.GetBalance(ctx, withdrawAuthorityKey)
	require.NoError(t, err)

	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Withdraw(ProgramKey, vault, poolKey, withdrawAuthorityKey, TipAmount/2),
	}, withdrawAuthority)
	require.NoError(t, err)

	after, err := env.GetBalance(ctx, withdrawAuthorityKey)
	require.NoError(t, err)
	assert.EqualValues(t, TipAmount/2, after-before)

	state2, err := ledger.GetTypedAs[TipPool](ctx, env.Accessor(), poolKey)
	require.NoError(t, err)
	assert.EqualValues(t, TipAmount/2, state2.Value)

	// Withdrawals are bounded by the pool's value
	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Withdraw(ProgramKey, vault, poolKey, withdrawAuthorityKey, TipAmount),
	}, withdrawAuthority)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInsufficientFunds)

	// Only the pool's authority can withdraw
	other := testutil.GenerateSolanaKeypair(t)
	otherKey := other.Public().(ed25519.PublicKey)
	require.NoError(t, env.Airdrop(ctx, otherKey, ActorLamports))
	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Withdraw(ProgramKey, vault, poolKey, otherKey, 1),
	}, other)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidArgument)
}

func TestInitialize_InvalidSeed(t *testing.T) {
	ctx, env := setup(t)

	creator := env.Payer()
	creatorKey := creator.Public().(ed25519.PublicKey)

	seed, vault, err := FindVaultSeed(ProgramKey, VictimSeedStart)
	require.NoError(t, err)

	// The vault must be derived from the seed in the instruction
	_, otherVault, err := FindVaultSeed(ProgramKey, seed+1)
	require.NoError(t, err)
	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Initialize(ProgramKey, otherVault, creatorKey, seed, CreatorFee, creatorKey),
	}, creator)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)

	_, err = env.GetAccount(ctx, vault)
	assert.Equal(t, ledger.ErrAccountNotFound, err)
}
