package level4

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
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
	assert.Len(t, report.Steps, 6)

	require.Len(t, report.Balances, 2)
	wallet, attacker := report.Balances[0], report.Balances[1]
	assert.Equal(t, pocs.UnitTokens, wallet.Unit)
	assert.EqualValues(t, DepositAmount, wallet.Before)
	assert.Zero(t, wallet.After)
	assert.Zero(t, attacker.Before)
	assert.EqualValues(t, DepositAmount, attacker.After)

	// The forwarded transfer runs three programs deep
	withdraw := report.Steps[len(report.Steps)-1]
	assert.Contains(t, strings.Join(withdraw.LogMessages, "\n"), "invoke [3]")
}

type fixture struct {
	env          *localenv.Environment
	owner        ed25519.PrivateKey
	ownerKey     ed25519.PublicKey
	mint         ed25519.PublicKey
	tokenAccount ed25519.PublicKey
	wallet       ed25519.PublicKey
	authority    ed25519.PublicKey
}

func setupWallet(t *testing.T) (context.Context, *fixture) {
	ctx, env := setup(t)

	f := &fixture{
		env:   env,
		owner: env.Payer(),
	}
	f.ownerKey = f.owner.Public().(ed25519.PublicKey)

	mint := testutil.GenerateSolanaKeypair(t)
	f.mint = mint.Public().(ed25519.PublicKey)
	tokenAccount := testutil.GenerateSolanaKeypair(t)
	f.tokenAccount = tokenAccount.Public().(ed25519.PublicKey)

	var err error
	f.wallet, _, err = WalletAddress(ProgramKey, f.ownerKey)
	require.NoError(t, err)
	f.authority, _, err = AuthorityAddress(ProgramKey)
	require.NoError(t, err)

	rent := env.Rent(ctx)
	_, err = env.ExecuteAsTransaction(ctx, []solana.Instruction{
		system.CreateAccount(f.ownerKey, f.mint, token.ProgramKey, rent.MinimumBalance(token.MintSize), token.MintSize),
		token.InitializeMint(f.mint, f.ownerKey, nil, Decimals),
		system.CreateAccount(f.ownerKey, f.tokenAccount, token.ProgramKey, rent.MinimumBalance(token.AccountSize), token.AccountSize),
		token.InitializeAccount(f.tokenAccount, f.mint, f.ownerKey),
		token.MintTo(f.mint, f.tokenAccount, f.ownerKey, MintedAmount),
		Initialize(ProgramKey, f.wallet, f.authority, f.ownerKey, f.mint),
		Deposit(ProgramKey, f.wallet, f.tokenAccount, f.ownerKey, f.mint, DepositAmount),
	}, f.owner, mint, tokenAccount)
	require.NoError(t, err)

	return ctx, f
}

func (f *fixture) amount(ctx context.Context, t *testing.T, address ed25519.PublicKey) uint64 {
	account, err := ledger.GetTypedAs[token.Account](ctx, f.env.Accessor(), address)
	require.NoError(t, err)
	return account.Amount
}

func TestWallet(t *testing.T) {
	ctx, f := setupWallet(t)

	walletAccount, err := f.env.GetAccount(ctx, f.wallet)
	require.NoError(t, err)
	assert.True(t, walletAccount.IsOwnedBy(token.ProgramKey))

	state, err := ledger.GetTypedAs[token.Account](ctx, f.env.Accessor(), f.wallet)
	require.NoError(t, err)
	assert.True(t, state.Owner.Equals(f.authority))
	assert.True(t, state.Mint.Equals(f.mint))
	assert.EqualValues(t, DepositAmount, state.Amount)
	assert.EqualValues(t, MintedAmount-DepositAmount, f.amount(ctx, t, f.tokenAccount))

	_, err = f.env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Withdraw(ProgramKey, f.wallet, f.authority, f.ownerKey, f.tokenAccount, f.mint, token.ProgramKey, DepositAmount/2),
	}, f.owner)
	require.NoError(t, err)

	assert.EqualValues(t, DepositAmount/2, f.amount(ctx, t, f.wallet))
	assert.EqualValues(t, MintedAmount-DepositAmount/2, f.amount(ctx, t, f.tokenAccount))
}

func TestWithdraw_RequiresOwner(t *testing.T) {
	ctx, f := setupWallet(t)

	other := testutil.GenerateSolanaKeypair(t)
	otherKey := other.Public().(ed25519.PublicKey)
	require.NoError(t, f.env.Airdrop(ctx, otherKey, AttackerLamports))

	// The wallet is derived from the signing owner
	_, err := f.env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Withdraw(ProgramKey, f.wallet, f.authority, otherKey, f.tokenAccount, f.mint, token.ProgramKey, 1),
	}, other)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)

	withdraw := Withdraw(ProgramKey, f.wallet, f.authority, f.ownerKey, f.tokenAccount, f.mint, token.ProgramKey, 1)
	withdraw.Accounts[2].IsSigner = false
	_, err = f.env.ExecuteAsTransaction(ctx, []solana.Instruction{withdraw}, other)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)

	assert.EqualValues(t, DepositAmount, f.amount(ctx, t, f.wallet))
}

func TestWithdraw_MintMismatch(t *testing.T) {
	ctx, f := setupWallet(t)

	// An account too short to be a mint reads as zero decimals, and the token
	// program rejects it
	_, err := f.env.ExecuteAsTransaction(ctx, []solana.Instruction{
		Withdraw(ProgramKey, f.wallet, f.authority, f.ownerKey, f.tokenAccount, system.ProgramKey, token.ProgramKey, 1),
	}, f.owner)
	require.Error(t, err)

	assert.EqualValues(t, DepositAmount, f.amount(ctx, t, f.wallet))
}
